// Copyright (c) 2025 Justin Cranford

// Package fortresssync implements a reference sync server: a blind,
// per-login-id key/value object store exposing the three HTTP endpoints
// described in the wire protocol. The sync client and its error kinds live
// in internal/fortress. The server never decrypts anything; it only enforces optimistic
// concurrency over opaque ciphertext blobs.
package fortresssync

import (
	"encoding/hex"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
)

// storedObject is one object's wire body: salt(32 bytes) ‖ ciphertext ‖
// mac(32 bytes), as produced by NetworkEncrypt and served verbatim (§4.4,
// §6). The server never decrypts this; it only reads the trailing 32
// bytes as the object's current version tag (the mac doubles as the
// content-addressed version/auth tag) for optimistic concurrency.
type storedObject struct {
	siv  string // lowercase hex, the trailing 32 bytes of body
	body []byte
}

// tenant is one login_id's object store and its trust-on-first-use login
// key: the first request seen for a login_id fixes the bearer key that
// every later request for that login_id must present.
type tenant struct {
	loginKey string
	objects  map[string]storedObject // id_hex -> object
}

// Server is the reference in-memory implementation of the sync HTTP API
// (external interface §6). It is safe for concurrent use.
type Server struct {
	mu      sync.RWMutex
	tenants map[string]*tenant // login_id_hex -> tenant
}

// NewServer returns an empty Server.
func NewServer() *Server {
	return &Server{tenants: make(map[string]*tenant)}
}

// Register mounts the three sync endpoints onto app.
func (s *Server) Register(app *fiber.App) {
	app.Get("/objects", s.handleListObjects)
	app.Get("/object/:id", s.handleGetObject)
	app.Post("/object/:id/:oldSIV", s.handlePostObject)
}

// zeroSIVHex is the 64 hex characters representing 32 zero bytes, the
// sentinel meaning "create new" for the old-SIV path parameter (§4.8, §6).
var zeroSIVHex = strings.Repeat("00", 32)

func (s *Server) authenticate(c *fiber.Ctx) (*tenant, bool) {
	auth := c.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) != len(prefix)+128 || auth[:len(prefix)] != prefix {
		return nil, false
	}
	token := auth[len(prefix):]
	loginID, loginKey := token[:64], token[64:]
	if _, err := hex.DecodeString(loginID); err != nil {
		return nil, false
	}
	if _, err := hex.DecodeString(loginKey); err != nil {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenants[loginID]
	if !ok {
		t = &tenant{loginKey: loginKey, objects: make(map[string]storedObject)}
		s.tenants[loginID] = t
		return t, true
	}
	if t.loginKey != loginKey {
		return nil, false
	}
	return t, true
}

func (s *Server) handleListObjects(c *fiber.Ctx) error {
	t, ok := s.authenticate(c)
	if !ok {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	pairs := make([][2]string, 0, len(t.objects))
	for id, obj := range t.objects {
		pairs = append(pairs, [2]string{id, obj.siv})
	}
	return c.Status(fiber.StatusOK).JSON(pairs)
}

func (s *Server) handleGetObject(c *fiber.Ctx) error {
	t, ok := s.authenticate(c)
	if !ok {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := t.objects[c.Params("id")]
	if !ok {
		return c.SendStatus(fiber.StatusNotFound)
	}
	return c.Status(fiber.StatusOK).Type("application/octet-stream").Send(obj.body)
}

func (s *Server) handlePostObject(c *fiber.Ctx) error {
	t, ok := s.authenticate(c)
	if !ok {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	id := c.Params("id")
	oldSIV := c.Params("oldSIV")
	body := c.Body()
	if len(body) < sivTagLen {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	newSIV := hex.EncodeToString(body[len(body)-sivTagLen:])

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, have := t.objects[id]
	switch {
	case !have && oldSIV != zeroSIVHex:
		return c.SendStatus(fiber.StatusConflict)
	case have && existing.siv != oldSIV:
		return c.SendStatus(fiber.StatusConflict)
	}

	t.objects[id] = storedObject{siv: newSIV, body: append([]byte(nil), body...)}
	return c.Status(fiber.StatusOK).SendString(newSIV)
}

// sivTagLen is the length of the trailing mac/version tag inside each
// object's wire body (§4.4).
const sivTagLen = 32
