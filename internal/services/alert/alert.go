// Package alert pushes operator notifications when a source keeps failing
// its warm runs. It observes warm results, counts consecutive failures per
// source, and sends one rate-limited Telegram message per failure streak
// (plus one on recovery).
package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"prewarmd/internal/warmer"
	logx "prewarmd/pkg/logx"
)

const (
	defaultConsecutiveFailures = 3
	defaultRatePerMin          = 6
	queueSize                  = 64
)

type Config struct {
	Enabled bool
	Token   string
	ChatID  int64

	// ConsecutiveFailures triggers an alert when a source fails this many
	// times in a row. 0 means the default of 3.
	ConsecutiveFailures int

	// RatePerMin caps outgoing messages. 0 means the default of 6.
	RatePerMin int
}

type Service struct {
	log logx.Logger
	cfg Config

	bot     *tele.Bot
	to      tele.Recipient
	limiter *rate.Limiter

	mu      sync.Mutex
	streaks map[string]int

	queue  chan string
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds the alert service. It contacts Telegram once to validate the
// token; callers should log the error and run without alerts rather than
// fail the daemon.
func New(cfg Config, log logx.Logger) (*Service, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Token == "" || cfg.ChatID == 0 {
		return nil, fmt.Errorf("alert: token and chat_id are required")
	}
	if cfg.ConsecutiveFailures <= 0 {
		cfg.ConsecutiveFailures = defaultConsecutiveFailures
	}
	if cfg.RatePerMin <= 0 {
		cfg.RatePerMin = defaultRatePerMin
	}

	bot, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, fmt.Errorf("alert: telegram init: %w", err)
	}

	perSec := rate.Limit(float64(cfg.RatePerMin) / 60.0)
	return &Service{
		log:     log.With(logx.String("comp", "alert")),
		cfg:     cfg,
		bot:     bot,
		to:      tele.ChatID(cfg.ChatID),
		limiter: rate.NewLimiter(perSec, cfg.RatePerMin),
		streaks: make(map[string]int),
		queue:   make(chan string, queueSize),
	}, nil
}

// Start launches the send worker. Nil services (disabled config) are safe.
func (s *Service) Start(ctx context.Context) {
	if s == nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.worker(ctx)
	}()
	s.log.Info("alert service started", logx.Int64("chat_id", s.cfg.ChatID))
}

// Stop drains the worker.
func (s *Service) Stop() {
	if s == nil {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Observe is the manager's result observer hook. It must not block.
func (s *Service) Observe(result warmer.WarmResult) {
	if s == nil {
		return
	}
	s.mu.Lock()
	if result.Success {
		streak := s.streaks[result.SourceName]
		delete(s.streaks, result.SourceName)
		s.mu.Unlock()
		if streak >= s.cfg.ConsecutiveFailures {
			s.enqueue(fmt.Sprintf("✅ %s recovered after %d failed warm runs", result.SourceName, streak))
		}
		return
	}

	s.streaks[result.SourceName]++
	streak := s.streaks[result.SourceName]
	s.mu.Unlock()

	// One alert per streak, exactly at the threshold.
	if streak == s.cfg.ConsecutiveFailures {
		s.enqueue(fmt.Sprintf("⚠️ %s failed %d warm runs in a row\nlast error: %s",
			result.SourceName, streak, result.ErrorMessage))
	}
}

// enqueue never blocks the caller; a full queue drops the message.
func (s *Service) enqueue(msg string) {
	select {
	case s.queue <- msg:
	default:
		s.log.Debug("alert dropped (queue full)")
	}
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.queue:
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
			if _, err := s.bot.Send(s.to, msg, &tele.SendOptions{DisableWebPagePreview: true}); err != nil {
				s.log.Warn("alert send failed", logx.Err(err))
				// brief pause so a broken token cannot spin the worker
				select {
				case <-ctx.Done():
					return
				case <-time.After(2 * time.Second):
				}
			}
		}
	}
}
