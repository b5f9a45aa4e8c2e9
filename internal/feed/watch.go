package feed

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/park285/cheese-session/pkg/chessdto"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

type HeaderProvider func() map[string]string

type WatchOptions struct {
	MaxReconnects int
	Headers       HeaderProvider
}

// Watch reads projections from a feed URL until ctx ends, reconnecting with
// backoff after a dropped connection.
func Watch(ctx context.Context, url string, opts WatchOptions, cb func(chessdto.Projection)) error {
	attempt := 0
	for {
		err := watchOnce(ctx, url, opts.Headers, cb, func() { attempt = 0 })
		if ctx.Err() != nil {
			return nil
		}
		attempt++
		if attempt > opts.MaxReconnects {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoffDuration(attempt)):
		}
	}
}

func watchOnce(ctx context.Context, url string, headers HeaderProvider, cb func(chessdto.Projection), connected func()) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.Dial(dialCtx, url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      buildHeaders(headers),
	})
	cancel()
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	connected()

	for {
		var p chessdto.Projection
		if err := wsjson.Read(ctx, conn, &p); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return errors.New("feed closed by server")
			}
			return err
		}
		cb(p)
	}
}

func buildHeaders(h HeaderProvider) http.Header {
	hdr := http.Header{}
	if h == nil {
		return hdr
	}
	for k, v := range h() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		hdr.Set(k, v)
	}
	return hdr
}

func backoffDuration(attempt int) time.Duration {
	d := time.Duration(attempt) * 500 * time.Millisecond
	if d > 10*time.Second {
		d = 10 * time.Second
	}
	return d
}
