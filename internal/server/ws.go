package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"github.com/sneakwind/lyra/internal/playback"
)

// syncRequest is one client message on the sync socket.
type syncRequest struct {
	Type    string  `json:"type"` // "load", "time" or "translation"
	Folder  string  `json:"folder"`
	Song    string  `json:"song"`
	T       float64 `json:"t"` // playback position in seconds
	Enabled bool    `json:"enabled"`
}

// syncLine mirrors playback.RenderedLine on the wire, with the time in
// seconds to match the media element's currentTime.
type syncLine struct {
	Time float64 `json:"time"`
	Text string  `json:"text"`
}

type syncFrame struct {
	State    string    `json:"state"` // "loading", "lyrics" or "nolyrics"
	Previous *syncLine `json:"previous,omitempty"`
	Current  *syncLine `json:"current,omitempty"`
	Next     *syncLine `json:"next,omitempty"`
}

// handleSync runs a per-connection sync controller: the client streams
// track loads and time updates, the server answers with render frames.
// Frames are only sent when the display should change, so a client can
// forward every timeupdate event without flooding itself.
func (s *Server) handleSync(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // same-host player pages, any origin
	})
	if err != nil {
		s.logger.Printf("ws accept: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	ctx := c.Request.Context()
	controller := playback.NewController(s.resolver)
	defer controller.Close()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var req syncRequest
		if err := json.Unmarshal(data, &req); err != nil {
			s.logger.Printf("ws: bad message: %v", err)
			continue
		}

		switch req.Type {
		case "load":
			if validateParams(req.Folder, req.Song) != nil {
				continue
			}
			controller.SetTrack(ctx, req.Folder, req.Song)
			frame, _ := controller.Advance(0)
			s.writeFrame(ctx, conn, frame)
		case "time":
			pos := time.Duration(req.T * float64(time.Second))
			if frame, changed := controller.Advance(pos); changed {
				s.writeFrame(ctx, conn, frame)
			}
		case "translation":
			controller.SetShowTranslation(req.Enabled)
			pos := time.Duration(req.T * float64(time.Second))
			frame, _ := controller.Advance(pos)
			s.writeFrame(ctx, conn, frame)
		}
	}
}

func (s *Server) writeFrame(ctx context.Context, conn *websocket.Conn, frame playback.Frame) {
	data, err := json.Marshal(toSyncFrame(frame))
	if err != nil {
		s.logger.Printf("ws: marshal frame: %v", err)
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		s.logger.Printf("ws: write frame: %v", err)
	}
}

func toSyncFrame(frame playback.Frame) syncFrame {
	out := syncFrame{
		Previous: toSyncLine(frame.Previous),
		Current:  toSyncLine(frame.Current),
		Next:     toSyncLine(frame.Next),
	}
	switch frame.State {
	case playback.StateLoading:
		out.State = "loading"
	case playback.StateLyrics:
		out.State = "lyrics"
	case playback.StateNoLyrics:
		out.State = "nolyrics"
	}
	return out
}

func toSyncLine(line *playback.RenderedLine) *syncLine {
	if line == nil {
		return nil
	}
	return &syncLine{Time: line.Time.Seconds(), Text: line.Text}
}
