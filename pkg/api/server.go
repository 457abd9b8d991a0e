package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.uber.org/zap"
)

const maxBodySize = 1 << 20

type Server struct {
	logger     *zap.Logger
	httpServer *http.Server
}

type ServerOptions struct {
	httpMiddleware []httpMiddleware
	corsOrigins    []string
}

type ServerOption func(options *ServerOptions)

func WithHttpMiddleware(m ...httpMiddleware) ServerOption {
	return func(options *ServerOptions) {
		options.httpMiddleware = m
	}
}

func WithCORS(allowedOrigins []string) ServerOption {
	return func(options *ServerOptions) {
		options.corsOrigins = allowedOrigins
	}
}

func NewServer(log *zap.Logger, handler Handler, address string, opts ...ServerOption) *Server {
	options := &ServerOptions{}
	for _, o := range opts {
		o(options)
	}
	middleware := []httpMiddleware{Logging(log), Metrics}
	middleware = append(middleware, options.httpMiddleware...)

	mux := http.NewServeMux()
	routes := map[string]http.HandlerFunc{
		"POST /api/v1/multisig-account/create":        handle(handler.CreateMultisigAccount),
		"POST /api/v1/multisig-account/details":       handle(handler.GetMultisigAccount),
		"POST /api/v1/multisig-account/approver/list": handle(handler.ListMultisigApprovers),
		"POST /api/v1/multisig-tx/propose":            handle(handler.ProposeMultisigTx),
		"POST /api/v1/multisig-tx/list":               handle(handler.ListMultisigTx),
		"POST /api/v1/multisig-tx/details":            handle(handler.GetMultisigTx),
		"POST /api/v1/multisig-tx/stats":              handle(handler.GetMultisigTxStats),
		"POST /api/v1/signature/add":                  handle(handler.AddSignature),
		"POST /api/v1/consumable-notes/list":          handle(handler.GetConsumableNotes),
		"GET /health": func(w http.ResponseWriter, r *http.Request) {
			writeResponse(w, http.StatusOK, Health{})
		},
	}
	for pattern, h := range routes {
		mux.Handle(pattern, applyMiddlewares(h, middleware...))
	}

	var root http.Handler = mux
	if len(options.corsOrigins) > 0 {
		root = CORS(options.corsOrigins)(root)
	}
	return &Server{
		logger: log,
		httpServer: &http.Server{
			Addr:              address,
			Handler:           root,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Run serves until Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("multisig coordinator api listening", zap.String("address", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		s.logger.Info("multisig coordinator api quit")
		return nil
	}
	return errors.Wrap(err, "listen and serve")
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func applyMiddlewares(handler http.Handler, middleware ...httpMiddleware) http.Handler {
	for _, md := range middleware {
		handler = md(handler)
	}
	return handler
}

// handle decodes the JSON body into a fresh request value, calls op and
// writes its response or error.
func handle[T any, P interface {
	*T
	decoder
}](op func(context.Context, P) (encoder, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			writeError(w, toError(http.StatusBadRequest, err))
			return
		}
		req := P(new(T))
		if len(body) == 0 {
			writeError(w, toError(http.StatusBadRequest, errors.New("empty request body")))
			return
		}
		if err := req.Decode(jx.DecodeBytes(body)); err != nil {
			writeError(w, toError(http.StatusBadRequest, errors.Wrap(err, "decode request")))
			return
		}
		res, err := op(r.Context(), req)
		if err != nil {
			ErrorsHandler(r.Context(), w, r, err)
			return
		}
		writeResponse(w, http.StatusOK, res)
	}
}

func writeResponse(w http.ResponseWriter, code int, res encoder) {
	var e jx.Encoder
	res.Encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}
