package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"rsc.io/qr"

	"github.com/mrz1836/depositor/internal/deposit"
	"github.com/mrz1836/depositor/internal/gateway"
	"github.com/mrz1836/depositor/internal/output"
	"github.com/mrz1836/depositor/internal/resolver"
	deperr "github.com/mrz1836/depositor/pkg/errors"
)

// maxQRData bounds the payload of a QR code request.
const maxQRData = 512

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error output.ErrorDetail `json:"error"`
}

// depositRequest is the body of POST /v1/deposit.
type depositRequest struct {
	Account string `json:"account"`
	Asset   string `json:"asset" binding:"required"`
	Gateway string `json:"gateway"`
}

// stateBody is the wire form of a resolver state.
type stateBody struct {
	Phase      string              `json:"phase"`
	Generation uint64              `json:"generation"`
	Target     *deposit.Target     `json:"target,omitempty"`
	Gateways   []gateway.ID        `json:"enabled_gateways"`
	Error      *output.ErrorDetail `json:"error,omitempty"`
}

// depositResponse is the body of a successful POST /v1/deposit.
type depositResponse struct {
	State stateBody     `json:"state"`
	View  resolver.View `json:"view"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"version":  s.opts.Version,
		"gateways": s.opts.Registry.IDs(),
		"assets":   s.opts.Catalog.Size(),
	})
}

// gatewayAvailability is one entry of GET /v1/gateways.
type gatewayAvailability struct {
	ID         gateway.ID `json:"id"`
	Name       string     `json:"name"`
	Strategy   string     `json:"strategy"`
	SupportURL string     `json:"support_url,omitempty"`
	Available  *bool      `json:"available,omitempty"`
	MinAmount  string     `json:"min_amount,omitempty"`
}

func (s *Server) gateways(c *gin.Context) {
	asset := strings.ToUpper(strings.TrimSpace(c.Query("asset")))

	all := s.opts.Registry.All()
	out := make([]gatewayAvailability, 0, len(all))
	for _, g := range all {
		entry := gatewayAvailability{
			ID:         g.ID,
			Name:       g.Name,
			Strategy:   g.Strategy.String(),
			SupportURL: g.SupportURL,
		}
		if asset != "" {
			backing, ok := s.opts.Catalog.BackingAsset(g.ID, asset)
			entry.Available = &ok
			if ok {
				entry.MinAmount = backing.MinAmountDisplay()
			}
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"asset": asset, "gateways": out})
}

func (s *Server) assets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"assets": s.opts.Catalog.Assets()})
}

func (s *Server) deposit(c *gin.Context) {
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, deperr.Wrap(deperr.ErrInvalidInput, "%s", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.RequestTimeout)
	defer cancel()

	// A named gateway must not be preceded by an auto-selected request.
	var opts []resolver.Option
	if req.Gateway != "" {
		opts = append(opts, resolver.WithAutoSelect(false))
	}
	r, err := s.opts.NewResolver(ctx, strings.TrimSpace(req.Account), opts...)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}

	r.SelectAsset(req.Asset)
	if req.Gateway != "" {
		r.SelectGateway(gateway.ParseID(req.Gateway))
	}

	state, err := r.Await(ctx)
	if err != nil {
		s.fail(c, http.StatusGatewayTimeout, deperr.Wrap(deperr.ErrNetworkError, "waiting for %s", state.Gateway))
		return
	}

	c.JSON(http.StatusOK, depositResponse{
		State: newStateBody(state),
		View:  resolver.NewView(state, s.opts.Registry),
	})
}

func newStateBody(state resolver.State) stateBody {
	body := stateBody{
		Phase:      state.Phase.String(),
		Generation: state.Generation,
		Target:     state.Target,
		Gateways:   state.EnabledGateways(),
	}
	if body.Gateways == nil {
		body.Gateways = []gateway.ID{}
	}
	if state.Err != nil {
		detail := output.NewErrorDetail(state.Err)
		body.Error = &detail
	}
	return body
}

func (s *Server) qr(c *gin.Context) {
	data := c.Query("data")
	if data == "" || len(data) > maxQRData {
		s.fail(c, http.StatusBadRequest, deperr.WithDetails(deperr.ErrInvalidInput, map[string]string{
			"data": "required, at most 512 bytes",
		}))
		return
	}

	png, err := output.QRPNG(data, qr.M)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.opts.Logger.Error("request failed",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err),
		)
	}
	var de *deperr.DepositError
	if !errors.As(err, &de) {
		err = deperr.Wrap(err, "internal error")
	}
	c.AbortWithStatusJSON(status, errorBody{Error: output.NewErrorDetail(err)})
}
