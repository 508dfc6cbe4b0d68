// Package home drives smart-home nodes over the hub protocol.
package home

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"jarvis/pkg/protocol"
)

// Requester sends one frame to a hub node and returns its reply.
type Requester interface {
	Request(ctx context.Context, to, verb, noun string, args ...string) (*protocol.Message, error)
}

type Config struct {
	LightsNode string
	LockNode   string
	SceneNode  string
}

func (c Config) withDefaults() Config {
	if c.LightsNode == "" {
		c.LightsNode = "VERTEX"
	}
	if c.LockNode == "" {
		c.LockNode = c.LightsNode
	}
	if c.SceneNode == "" {
		c.SceneNode = c.LightsNode
	}
	return c
}

// Hub implements ports.Home. Successful actions return an empty string so the
// dispatcher answers with its own confirmation.
type Hub struct {
	req Requester
	cfg Config
}

func NewHub(req Requester, cfg Config) *Hub {
	return &Hub{req: req, cfg: cfg.withDefaults()}
}

var errNoReply = errors.New("no reply from hub")

func (h *Hub) do(ctx context.Context, to, verb, noun string, args ...string) (*protocol.Message, error) {
	resp, err := h.req.Request(ctx, to, verb, noun, args...)
	if err != nil {
		return nil, fmt.Errorf("%s %s on %s: %w", verb, noun, to, err)
	}
	if resp == nil {
		return nil, errNoReply
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp, nil
}

func (h *Hub) Lights(ctx context.Context, value string) (string, error) {
	value = strings.ToLower(strings.TrimSpace(value))

	var err error
	switch {
	case value == "on":
		_, err = h.do(ctx, h.cfg.LightsNode, "ON", "LAMP")
	case value == "off":
		_, err = h.do(ctx, h.cfg.LightsNode, "OFF", "LAMP")
	case strings.HasSuffix(value, "%"):
		pct, perr := strconv.Atoi(strings.TrimSuffix(value, "%"))
		if perr != nil || pct < 0 || pct > 100 {
			return "", fmt.Errorf("brightness %q out of range", value)
		}
		_, err = h.do(ctx, h.cfg.LightsNode, "SET", "BRIGHTNESS", strconv.Itoa(pct))
	case value != "":
		_, err = h.do(ctx, h.cfg.LightsNode, "SET", "COLOR", protocol.Token(value))
	default:
		return "", errors.New("empty light command")
	}
	return "", err
}

func (h *Hub) LightStatus(ctx context.Context) (string, error) {
	resp, err := h.do(ctx, h.cfg.LightsNode, "GET", "LAMP")
	if err != nil {
		return "", err
	}
	if len(resp.Args) == 0 {
		return "The lights are reachable but didn't report a state.", nil
	}

	state := strings.ToLower(resp.Args[0])
	if len(resp.Args) > 1 {
		return fmt.Sprintf("The lights are %s at %s percent.", state, resp.Args[1]), nil
	}
	return fmt.Sprintf("The lights are %s.", state), nil
}

func (h *Hub) Scene(ctx context.Context, name string) (string, error) {
	tok := protocol.Token(strings.ToLower(name))
	if tok == "" {
		return "", errors.New("empty scene name")
	}
	if _, err := h.do(ctx, h.cfg.SceneNode, "SET", "SCENE", tok); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s scene activated.", titleCase(name)), nil
}

func (h *Hub) Lock(ctx context.Context) (string, error) {
	_, err := h.do(ctx, h.cfg.LockNode, "LOCK", "DOOR")
	return "", err
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
