// Package server exposes the music library and lyric resolver over HTTP.
package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sneakwind/lyra/internal/library"
	"github.com/sneakwind/lyra/internal/resolver"
)

// Server wires the JSON API, the sync websocket and static file serving.
type Server struct {
	library  *library.Library
	resolver *resolver.Resolver
	logger   *log.Logger
	engine   *gin.Engine
}

// New builds the HTTP surface. lyricsRoot is served statically so clients
// can fetch raw .lrc files directly.
func New(lib *library.Library, res *resolver.Resolver, lyricsRoot string, logger *log.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		library:  lib,
		resolver: res,
		logger:   logger,
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(gin.LoggerWithWriter(logger.Writer()))

	engine.GET("/api", s.handleAPI)
	engine.GET("/ws/sync", s.handleSync)
	engine.Static("/music", lib.Root())
	engine.Static("/lyrics", lyricsRoot)

	s.engine = engine
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// errorResponse is the failure shape shared by list-style actions.
type errorResponse struct {
	Error string `json:"error"`
}

// lyricsResponse is the per-song result shape of getLyrics and
// getBatchLyrics.
type lyricsResponse struct {
	Success bool   `json:"success"`
	Lyrics  string `json:"lyrics,omitempty"`
	Message string `json:"message,omitempty"`
}

// handleAPI dispatches the query-parameter-addressed actions. Failures
// are reported in the payload, never through the HTTP status, so clients
// inspect the body shape to detect them.
func (s *Server) handleAPI(c *gin.Context) {
	switch c.Query("action") {
	case "getFolders":
		s.getFolders(c)
	case "getSongs":
		s.getSongs(c)
	case "getLyrics":
		s.getLyrics(c)
	case "getBatchLyrics":
		s.getBatchLyrics(c)
	case "clearLyricsCache":
		s.clearLyricsCache(c)
	default:
		c.PureJSON(http.StatusOK, errorResponse{Error: "invalid action"})
	}
}

func (s *Server) getFolders(c *gin.Context) {
	folders, err := s.library.Folders()
	if err != nil {
		s.logger.Printf("getFolders: %v", err)
		c.PureJSON(http.StatusOK, errorResponse{Error: "failed to list folders"})
		return
	}
	if folders == nil {
		folders = []string{}
	}
	c.PureJSON(http.StatusOK, folders)
}

func (s *Server) getSongs(c *gin.Context) {
	songs, err := s.library.Songs(c.Query("folder"))
	if err != nil {
		c.PureJSON(http.StatusOK, errorResponse{Error: err.Error()})
		return
	}
	if songs == nil {
		songs = []string{}
	}
	c.PureJSON(http.StatusOK, songs)
}

func (s *Server) getLyrics(c *gin.Context) {
	folder := c.Query("folder")
	song := c.Query("song")
	if err := validateParams(folder, song); err != nil {
		c.PureJSON(http.StatusOK, lyricsResponse{Message: err.Error()})
		return
	}

	result := s.resolver.Resolve(folder, song)
	c.PureJSON(http.StatusOK, lyricsResponse{
		Success: result.Success,
		Lyrics:  result.Lyrics,
		Message: result.Message,
	})
}

// getBatchLyrics resolves a whole playlist page in one request, keyed by
// the requested song names.
func (s *Server) getBatchLyrics(c *gin.Context) {
	folder := c.Query("folder")
	if err := library.ValidateName(folder); err != nil {
		c.PureJSON(http.StatusOK, errorResponse{Error: err.Error()})
		return
	}

	var songs []string
	if err := json.Unmarshal([]byte(c.Query("songs")), &songs); err != nil {
		c.PureJSON(http.StatusOK, errorResponse{Error: "invalid song list"})
		return
	}

	results := make(map[string]lyricsResponse, len(songs))
	for song, result := range s.resolver.ResolveBatch(folder, songs) {
		results[song] = lyricsResponse{
			Success: result.Success,
			Lyrics:  result.Lyrics,
			Message: result.Message,
		}
	}

	c.PureJSON(http.StatusOK, gin.H{"success": true, "results": results})
}

func (s *Server) clearLyricsCache(c *gin.Context) {
	if err := s.resolver.ClearCache(); err != nil {
		s.logger.Printf("clearLyricsCache: %v", err)
		c.PureJSON(http.StatusOK, errorResponse{Error: "failed to clear cache"})
		return
	}
	c.PureJSON(http.StatusOK, gin.H{"success": true})
}

func validateParams(folder, song string) error {
	if err := library.ValidateName(folder); err != nil {
		return err
	}
	if err := library.ValidateName(song); err != nil {
		return err
	}
	return nil
}
