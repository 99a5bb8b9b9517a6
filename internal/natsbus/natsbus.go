// Package natsbus republishes table updates on NATS so that other
// processes can follow a table without a WebSocket.
//
// Subjects:
//
//	cardroom.<table>.frames.<viewer>   one frame per viewer, "$" for anonymous
//	cardroom.<table>.notices           rejected-action notices
//	cardroom.<table>.status            "unavailable" when the table fails
//
// Names made of letters, digits, '_' and '-' are used as they are. Any
// other name is written as '~' followed by its base32hex encoding, so two
// different names never share a subject.
package natsbus

import (
	"context"
	"encoding/base32"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/charmbracelet/log"
	natsgo "github.com/nats-io/nats.go"

	"github.com/lox/cardroom/internal/controller"
	"github.com/lox/cardroom/internal/frame"
)

const prefix = "cardroom"

// Publisher is the part of *nats.Conn the bus needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Bus publishes controller updates.
type Bus struct {
	pub    Publisher
	logger *log.Logger
}

func New(pub Publisher, logger *log.Logger) *Bus {
	return &Bus{pub: pub, logger: logger.WithPrefix("nats")}
}

// Connect dials the NATS server at url. The returned function drains and
// closes the connection.
func Connect(url string, logger *log.Logger) (*Bus, func(), error) {
	nc, err := natsgo.Connect(url, natsgo.Name("cardroom"))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	closeFn := func() {
		if err := nc.Drain(); err != nil {
			nc.Close()
		}
	}
	return New(nc, logger), closeFn, nil
}

const anonymousToken = "$"

var (
	plainName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	encoding  = base32.HexEncoding.WithPadding(base32.NoPadding)
)

// token maps s to one subject token. The mapping is one-to-one.
func token(s string) string {
	switch {
	case s == "":
		return anonymousToken
	case plainName.MatchString(s):
		return s
	}
	return "~" + encoding.EncodeToString([]byte(s))
}

func FrameSubject(table, viewer string) string {
	return fmt.Sprintf("%s.%s.frames.%s", prefix, token(table), token(viewer))
}

func NoticeSubject(table string) string {
	return fmt.Sprintf("%s.%s.notices", prefix, token(table))
}

func StatusSubject(table string) string {
	return fmt.Sprintf("%s.%s.status", prefix, token(table))
}

// Publish sends every frame and notice in u.
func (b *Bus) Publish(table string, u controller.Update) error {
	var errs []error
	for _, set := range u.Frames {
		for _, viewer := range set.Viewers() {
			errs = append(errs, b.publishJSON(FrameSubject(table, viewer), set[viewer]))
		}
	}
	if u.Notice != nil {
		errs = append(errs, b.publishJSON(NoticeSubject(table), u.Notice))
	}
	if u.Unavailable {
		errs = append(errs, b.pub.Publish(StatusSubject(table), []byte("unavailable")))
	}
	return errors.Join(errs...)
}

func (b *Bus) publishJSON(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", subject, err)
	}
	return b.pub.Publish(subject, data)
}

// Relay publishes the updates of c until it stops or ctx is cancelled.
func (b *Bus) Relay(ctx context.Context, c *controller.Controller) {
	updates, cancel := c.Subscribe()
	defer cancel()

	if f := c.Frames(); f != nil {
		if err := b.Publish(c.Name(), controller.Update{Frames: []frame.Set{f}}); err != nil {
			b.logger.Warn("Failed to publish frames", "table", c.Name(), "error", err)
		}
	}
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := b.Publish(c.Name(), u); err != nil {
				b.logger.Warn("Failed to publish update", "table", c.Name(), "error", err)
			}
		}
	}
}
