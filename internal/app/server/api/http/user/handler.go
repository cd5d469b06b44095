package user

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"tradekeeper/internal/domain/session"
	"tradekeeper/internal/domain/user"
)

type Handler struct {
	service    user.Servicer
	session    session.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service user.Servicer, session session.Servicer, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		session:    session,
		log:        log,
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.registerOp(), h.register)
	huma.Register(api, h.loginOp(), h.login)
}

func (h *Handler) register(ctx context.Context, input *registerInput) (*registerOutput, error) {
	accountID, err := h.service.Register(ctx, input.Body.Login, input.Body.Password)
	if err != nil {
		return &registerOutput{
			Body: RegisterResponse{Status: "Error", Error: err.Error()},
		}, nil
	}

	return &registerOutput{
		Body: RegisterResponse{ID: accountID, Status: "Ok"},
	}, nil
}

func (h *Handler) login(ctx context.Context, input *loginInput) (*loginOutput, error) {
	u, err := h.service.Authenticate(ctx, input.Body.Login, input.Body.Password)
	if err != nil {
		return &loginOutput{
			Body: LoginResponse{
				Status: "Error",
				Error:  "Invalid credentials",
			},
		}, nil
	}

	token, err := h.session.Create(ctx, u.ID)
	if err != nil {
		h.log.Error("create session", "error", err)
		return &loginOutput{
			Body: LoginResponse{
				Status: "Error",
				Error:  "Failed to create session",
			},
		}, nil
	}

	return &loginOutput{
		Body: LoginResponse{Token: token, Status: "Ok"},
	}, nil
}
