package health

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/srediag/shm-pool/internal/logging"
)

const shutdownTimeout = 5 * time.Second

// StateResponse is the body of GET /state.
type StateResponse struct {
	Reported     bool  `json:"reported"`
	Total        int64 `json:"total"`
	Available    int64 `json:"available"`
	Allocated    int64 `json:"allocated"`
	Transactions int64 `json:"transactions"`
}

// Server is the owner's admin HTTP server.
type Server struct {
	addr   string
	router *gin.Engine
	log    *zap.Logger
}

// NewServer builds the admin routes: /live, /ready, /state and /metrics.
// Metrics are gathered from reg.
func NewServer(addr string, probe Probe, reg *prometheus.Registry, log *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	checks := NewHandler(probe, reg)
	router.GET("/live", gin.WrapF(checks.LiveEndpoint))
	router.GET("/ready", gin.WrapF(checks.ReadyEndpoint))
	router.GET("/state", func(c *gin.Context) {
		st, ok := probe.LastSnapshot()
		c.JSON(http.StatusOK, StateResponse{
			Reported:     ok,
			Total:        st.Total,
			Available:    st.Available,
			Allocated:    st.Allocated,
			Transactions: st.Transactions,
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	return &Server{
		addr:   addr,
		router: router,
		log:    logging.OrNop(log).Named(logging.Admin),
	}
}

// Handler returns the routes, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx ends and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	done := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(done)
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			s.log.Warn("admin server shutdown", zap.Error(err))
		}
	})
	defer stop()

	s.log.Info("admin server listening", zap.String("addr", ln.Addr().String()))
	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-done
		return nil
	}
	return err
}
