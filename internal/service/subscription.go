// Package service orchestrates subscription delivery on top of the
// generation core.
package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/creamcroissant/marzgo/internal/repository"
	"github.com/creamcroissant/marzgo/internal/subscription"
)

// SubscriptionService resolves a username to a rendered payload plus
// the delivery metadata clients expect in response headers.
type SubscriptionService struct {
	users     repository.UserStore
	assembler *subscription.Assembler
	logger    *slog.Logger

	profileTitle   string
	updateInterval int
}

// SubscriptionOptions wires the service dependencies.
type SubscriptionOptions struct {
	Users     repository.UserStore
	Assembler *subscription.Assembler
	Logger    *slog.Logger

	ProfileTitle        string
	UpdateIntervalHours int
}

// Result is one generated subscription response.
type Result struct {
	Payload     string
	ContentType string
	Format      subscription.Format

	// ETag is a strong validator over the payload bytes.
	ETag string

	// UserInfo is the subscription-userinfo header value.
	UserInfo string

	// ProfileTitle and UpdateIntervalHours feed the remaining headers.
	ProfileTitle        string
	UpdateIntervalHours int

	Filename string
}

// NewSubscriptionService assembles the service.
func NewSubscriptionService(opts SubscriptionOptions) *SubscriptionService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	title := opts.ProfileTitle
	if title == "" {
		title = "Subscription"
	}
	interval := opts.UpdateIntervalHours
	if interval <= 0 {
		interval = 12
	}
	return &SubscriptionService{
		users:          opts.Users,
		assembler:      opts.Assembler,
		logger:         logger,
		profileTitle:   title,
		updateInterval: interval,
	}
}

// GenerateRequest names a delivery request. Format may be empty, in
// which case the client User-Agent decides.
type GenerateRequest struct {
	Username  string
	Format    subscription.Format
	UserAgent string
	AsBase64  bool
}

// Generate produces the subscription payload for one user.
func (s *SubscriptionService) Generate(ctx context.Context, req GenerateRequest) (*Result, error) {
	user, err := s.users.User(req.Username)
	if err != nil {
		return nil, err
	}

	format := req.Format
	if format == "" {
		format = DetectFormat(req.UserAgent)
	}

	payload, err := s.assembler.Generate(subscription.GenerateInput{
		Account:  user.Account,
		Inbounds: user.Inbounds,
		Status:   user.Snapshot(),
		Format:   format,
		AsBase64: req.AsBase64,
	})
	if err != nil {
		return nil, err
	}

	sum := sha1.Sum([]byte(payload))
	generatedTotal.WithLabelValues(string(format)).Inc()

	s.logger.Debug("subscription generated",
		slog.String("username", user.Username),
		slog.String("format", string(format)),
		slog.Int("bytes", len(payload)),
	)

	return &Result{
		Payload:             payload,
		ContentType:         format.ContentType(),
		Format:              format,
		ETag:                `"` + hex.EncodeToString(sum[:]) + `"`,
		UserInfo:            userInfoHeader(user),
		ProfileTitle:        s.profileTitle,
		UpdateIntervalHours: s.updateInterval,
		Filename:            user.Username,
	}, nil
}

// DetectFormat maps a client User-Agent onto the best payload format.
// Unknown agents fall back to plain share links.
func DetectFormat(userAgent string) subscription.Format {
	ua := strings.ToLower(userAgent)
	// Meta clients spell themselves inconsistently (clash-meta, clash.meta,
	// ClashMetaForAndroid), so separators are stripped before matching.
	compact := strings.NewReplacer("-", "", ".", "", " ", "").Replace(ua)
	switch {
	case strings.Contains(compact, "clashmeta"), strings.Contains(compact, "mihomo"),
		strings.Contains(compact, "clashverge"):
		return subscription.FormatClashMeta
	case strings.Contains(ua, "clash"):
		return subscription.FormatClash
	case strings.Contains(ua, "sing-box"), strings.Contains(ua, "sfa"),
		strings.Contains(ua, "sfi"), strings.Contains(ua, "sfm"):
		return subscription.FormatSingBox
	default:
		return subscription.FormatLinks
	}
}

// userInfoHeader renders the subscription-userinfo value. Zero limit
// and zero expiry mean unlimited and are omitted as zeros the way
// clients expect.
func userInfoHeader(u *repository.User) string {
	return fmt.Sprintf("upload=0; download=%d; total=%d; expire=%d",
		u.UsedTraffic, u.DataLimit, u.Expire)
}
