// Package sloghook logs cache events through log/slog.
package sloghook

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/doccache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	ExpiredOnReadEvery uint64
	CoalescedEvery     uint64
	SelfHealEvery      uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	expiredCtr   atomic.Uint64
	coalescedCtr atomic.Uint64
	selfHealCtr  atomic.Uint64
}

var _ doccache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) ExpiredOnRead(key string) {
	if h.l == nil || !sample(h.opts.ExpiredOnReadEvery, &h.expiredCtr) {
		return
	}
	h.l.Debug("doccache.expired_on_read", "key", h.redact(key))
}

func (h *Hooks) SweepStarted(cutoff time.Time) {
	if h.l == nil {
		return
	}
	h.l.Debug("doccache.sweep_started", "cutoff", cutoff)
}

func (h *Hooks) SweepCompleted(cutoff time.Time, took time.Duration) {
	if h.l == nil {
		return
	}
	h.l.Info("doccache.sweep_completed",
		"cutoff", cutoff,
		"took", took)
}

func (h *Hooks) SweepFailed(cutoff time.Time, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("doccache.sweep_failed",
		"cutoff", cutoff,
		"err", err)
}

func (h *Hooks) SweepCoalesced() {
	if h.l == nil || !sample(h.opts.CoalescedEvery, &h.coalescedCtr) {
		return
	}
	h.l.Debug("doccache.sweep_coalesced")
}

func (h *Hooks) SelfHeal(key, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Warn("doccache.self_heal",
		"key", h.redact(key),
		"reason", reason)
}
