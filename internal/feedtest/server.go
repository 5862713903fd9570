package feedtest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/okian/ultralive/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

// Run serves the simulated feed until ctx is cancelled. Every request gets
// the field's state at that instant, so a poller hitting the endpoint sees
// a race progressing in real time.
func Run(ctx context.Context, cfg *Config) error {
	log := logger.Named("feedtest")
	field := newField(cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Jitter > 0 {
			time.Sleep(cfg.Jitter)
		}
		rows := snapshot(cfg, field, time.Now())

		var body []byte
		var err error
		switch cfg.Format {
		case "html":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			body = renderHTML(rows)
		default:
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			body, err = renderJSON(rows)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(body)

		if cfg.LogRequests {
			log.Info(r.Context(), "served snapshot",
				logger.Int("runners", len(rows)),
				logger.String("format", cfg.Format))
		}
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "feed simulator listening",
			logger.String("addr", cfg.Addr),
			logger.Int("runners", cfg.Runners),
			logger.String("format", cfg.Format))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
