package payment

import (
	"context"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
)

// ReturnServer listens on a loopback address for the provider redirect when
// checkout was started from the command line.
type ReturnServer struct {
	srv     *http.Server
	ln      net.Listener
	returns chan Return
}

func StartReturnServer(addr string) (*ReturnServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen on %s", addr)
	}
	rs := &ReturnServer{ln: ln, returns: make(chan Return, 1)}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/payment/return", ReturnHandler(func(w http.ResponseWriter, _ *http.Request, ret Return) {
		select {
		case rs.returns <- ret:
		default:
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Payment received. You can close this window and return to the terminal.\n"))
	}))
	rs.srv = &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := rs.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("payment: return server: %v", err)
		}
	}()
	return rs, nil
}

// URL is the address to register as the provider return URL.
func (rs *ReturnServer) URL() string {
	return "http://" + rs.ln.Addr().String() + "/payment/return"
}

// Wait blocks until a return arrives or ctx is done.
func (rs *ReturnServer) Wait(ctx context.Context) (Return, error) {
	select {
	case ret := <-rs.returns:
		return ret, nil
	case <-ctx.Done():
		return Return{}, ctx.Err()
	}
}

func (rs *ReturnServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return rs.srv.Shutdown(ctx)
}
