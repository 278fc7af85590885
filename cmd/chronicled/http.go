package main

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/golang-jwt/jwt/v5"

	"github.com/chronicleworks/chronicle/internal/dispatcher"
	"github.com/chronicleworks/chronicle/internal/identity"
	"github.com/chronicleworks/chronicle/internal/policy"
	"github.com/chronicleworks/chronicle/internal/projector"
	"github.com/chronicleworks/chronicle/internal/prov/id"
	"github.com/chronicleworks/chronicle/internal/prov/model"
	"github.com/chronicleworks/chronicle/pkg/chronerr"
	"github.com/chronicleworks/chronicle/pkg/config"
	"github.com/chronicleworks/chronicle/pkg/mlog"
)

// server exposes the command pipeline and the policy admin surface over
// HTTP (spec §6.4). One fiber.App carries both; nothing here blocks on
// ledger commit — Dispatch itself never does.
type server struct {
	cfg   *config.Config
	d     *dispatcher.Dispatcher
	store *projector.Store
	gate  *policy.Gate
}

func serveHTTP(ctx context.Context, cfg *config.Config, d *dispatcher.Dispatcher, store *projector.Store, gate *policy.Gate) error {
	s := &server{cfg: cfg, d: d, store: store, gate: gate}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(requestid.New())
	app.Use(cors.New())
	app.Use(func(c *fiber.Ctx) error {
		c.SetUserContext(ctx)
		return c.Next()
	})
	app.Use(s.withIdentity)

	app.Post("/v1/dispatch", s.handleDispatch)
	app.Get("/v1/query", s.handleQuery)
	app.Get("/v1/query/persisted", s.handlePersistedQuery)

	app.Post("/v1/policy/bootstrap-root", s.handleBootstrapRoot)
	app.Post("/v1/policy/register-key", s.handleRegisterKey)
	app.Post("/v1/policy/rotate-key", s.handleRotateKey)
	app.Post("/v1/policy/set-policy", s.handleSetPolicy)
	app.Get("/v1/policy/key/:name", s.handleGetKey)
	app.Get("/v1/policy/bundle", s.handleGetPolicy)

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	errCh := make(chan error, 1)

	go func() { errCh <- app.Listen(cfg.ServerAddress) }()

	select {
	case <-ctx.Done():
		return app.ShutdownWithTimeout(5 * time.Second)
	case err := <-errCh:
		return err
	}
}

type identityContextKey struct{}

// withIdentity resolves the caller's identity.Identity from an optional
// bearer JWT (spec §4.10): no header means Anonymous; a present header
// that fails to parse or is missing a required claim is rejected outright
// rather than silently downgraded. When no JWT signing key is configured,
// the header is not inspected and every caller is Anonymous.
func (s *server) withIdentity(c *fiber.Ctx) error {
	auth := c.Get(fiber.HeaderAuthorization)
	if auth == "" || s.cfg.JWTSigningKey == "" {
		c.Locals(identityContextKey{}, identity.Anonymous())
		return c.Next()
	}

	raw := strings.TrimPrefix(auth, "Bearer ")

	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return []byte(s.cfg.JWTSigningKey), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return unauthorized(c, "invalid bearer token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return unauthorized(c, "invalid bearer token")
	}

	caller, err := identity.FromClaims(claims, s.cfg.JWTRequiredClaims)
	if err != nil {
		return unauthorized(c, err.Error())
	}

	c.Locals(identityContextKey{}, caller)

	return c.Next()
}

func callerOf(c *fiber.Ctx) identity.Identity {
	if caller, ok := c.Locals(identityContextKey{}).(identity.Identity); ok {
		return caller
	}

	return identity.Anonymous()
}

type dispatchRequest struct {
	Command     string              `json:"command"`
	Namespace   string              `json:"namespace"`
	Name        string              `json:"name,omitempty"`
	DomainType  *string             `json:"domainType,omitempty"`
	Attributes  []model.Attribute   `json:"attributes,omitempty"`
	Activity    string              `json:"activity,omitempty"`
	Entity      string              `json:"entity,omitempty"`
	Agent       string              `json:"agent,omitempty"`
	Informing   string              `json:"informing,omitempty"`
	Delegate    string              `json:"delegate,omitempty"`
	Responsible string              `json:"responsible,omitempty"`
	Generated   string              `json:"generated,omitempty"`
	Used        string              `json:"used,omitempty"`
	Role        *string             `json:"role,omitempty"`
	PublicKey   string              `json:"publicKey,omitempty"`
	Kind        model.DerivationKind `json:"kind,omitempty"`
	Time        time.Time           `json:"time,omitempty"`
	ViaActivity *string             `json:"viaActivity,omitempty"`
}

func (s *server) handleDispatch(c *fiber.Ctx) error {
	var req dispatchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err.Error())
	}

	cmd, err := buildCommand(req)
	if err != nil {
		return badRequest(c, err.Error())
	}

	resp, err := s.d.Dispatch(c.UserContext(), cmd, callerOf(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"kind":          resp.Kind,
		"subject":       resp.Subject,
		"correlationId": resp.CorrelationID,
	})
}

func buildCommand(req dispatchRequest) (dispatcher.Command, error) {
	switch req.Command {
	case "Agent.Create":
		return dispatcher.AgentCreate{Namespace: req.Namespace, Name: req.Name, DomainType: req.DomainType, Attributes: req.Attributes}, nil
	case "Activity.Create":
		return dispatcher.ActivityCreate{Namespace: req.Namespace, Name: req.Name, DomainType: req.DomainType, Attributes: req.Attributes}, nil
	case "Entity.Create":
		return dispatcher.EntityCreate{Namespace: req.Namespace, Name: req.Name, DomainType: req.DomainType, Attributes: req.Attributes}, nil
	case "Activity.Start":
		return dispatcher.ActivityStart{Namespace: req.Namespace, Activity: req.Activity, Time: orNow(req.Time)}, nil
	case "Activity.End":
		return dispatcher.ActivityEnd{Namespace: req.Namespace, Activity: req.Activity, Time: orNow(req.Time)}, nil
	case "Activity.Use":
		return dispatcher.ActivityUse{Namespace: req.Namespace, Activity: req.Activity, Entity: req.Entity}, nil
	case "Activity.Generate":
		return dispatcher.ActivityGenerate{Namespace: req.Namespace, Activity: req.Activity, Entity: req.Entity}, nil
	case "Activity.WasInformedBy":
		return dispatcher.ActivityWasInformedBy{Namespace: req.Namespace, Activity: req.Activity, Informing: req.Informing}, nil
	case "Agent.Associate":
		return dispatcher.AgentAssociate{Namespace: req.Namespace, Agent: req.Agent, Activity: req.Activity, Role: req.Role}, nil
	case "Agent.Attribute":
		return dispatcher.AgentAttribute{Namespace: req.Namespace, Agent: req.Agent, Entity: req.Entity, Role: req.Role}, nil
	case "Agent.Delegate":
		return dispatcher.AgentDelegate{Namespace: req.Namespace, Delegate: req.Delegate, Responsible: req.Responsible, Activity: req.ViaActivity, Role: req.Role}, nil
	case "Agent.RegisterKey":
		return dispatcher.AgentRegisterKey{Namespace: req.Namespace, Agent: req.Agent, PublicKey: req.PublicKey}, nil
	case "Entity.Derive":
		return dispatcher.EntityDerive{Namespace: req.Namespace, Generated: req.Generated, Used: req.Used, Activity: req.ViaActivity, Kind: req.Kind}, nil
	case "DepthCharge":
		return dispatcher.DepthCharge{}, nil
	default:
		return nil, chronerr.IdentityError{Message: "unknown command " + req.Command}
	}
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}

	return t
}

func (s *server) handleQuery(c *fiber.Ctx) error {
	ns := c.Query("namespace")

	resp, err := s.d.Dispatch(c.UserContext(), dispatcher.Query{Namespace: ns}, callerOf(c))
	if err != nil {
		return respondError(c, err)
	}

	nsID, ok := findNamespace(resp.Prov, ns)
	if !ok {
		return c.JSON(fiber.Map{"namespaces": []string{}})
	}

	out, err := resp.Prov.ToExpandedJSON(nsID)
	if err != nil {
		return internalError(c, err.Error())
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	return c.Send(out)
}

// handlePersistedQuery answers from the Persistence Projector's
// relational index rather than this node's in-process mirror — the
// cross-node-consistent read path (spec §6.4).
func (s *server) handlePersistedQuery(c *fiber.Ctx) error {
	m, err := projector.Query(c.UserContext(), s.store, c.Query("namespace"))
	if err != nil {
		return internalError(c, err.Error())
	}

	nsID, ok := findNamespace(m, c.Query("namespace"))
	if !ok {
		return c.JSON(fiber.Map{"namespaces": []string{}})
	}

	out, err := m.ToExpandedJSON(nsID)
	if err != nil {
		return internalError(c, err.Error())
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	return c.Send(out)
}

func findNamespace(m *model.Model, externalID string) (id.NamespaceID, bool) {
	for nsID := range m.Namespaces {
		if nsID.ExternalID == externalID {
			return nsID, true
		}
	}

	return id.NamespaceID{}, false
}

type bootstrapRootRequest struct {
	PublicKeyHex string `json:"publicKeyHex"`
}

func (s *server) handleBootstrapRoot(c *fiber.Ctx) error {
	var req bootstrapRootRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := s.gate.BootstrapRoot(req.PublicKeyHex); err != nil {
		return respondError(c, err)
	}

	return c.SendStatus(fiber.StatusCreated)
}

type registerKeyRequest struct {
	Name         string `json:"name"`
	PublicKeyHex string `json:"publicKeyHex"`
	Overwrite    bool   `json:"overwrite"`
}

func (s *server) handleRegisterKey(c *fiber.Ctx) error {
	var req registerKeyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := s.gate.RegisterKey(req.Name, req.PublicKeyHex, req.Overwrite); err != nil {
		return respondError(c, err)
	}

	return c.SendStatus(fiber.StatusCreated)
}

type rotateKeyRequest struct {
	Name      string `json:"name"`
	NewKeyHex string `json:"newKeyHex"`
	PrevSig   string `json:"prevSig"`
	NewSig    string `json:"newSig"`
}

func (s *server) handleRotateKey(c *fiber.Ctx) error {
	var req rotateKeyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err.Error())
	}

	versioned, err := s.gate.VerifyRotation(req.Name, req.NewKeyHex, req.PrevSig, req.NewSig)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(versioned)
}

type setPolicyRequest struct {
	Bundle string `json:"bundle"`
}

func (s *server) handleSetPolicy(c *fiber.Ctx) error {
	var req setPolicyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, err.Error())
	}

	s.gate.Load([]byte(req.Bundle))

	return c.SendStatus(fiber.StatusNoContent)
}

func (s *server) handleGetKey(c *fiber.Ctx) error {
	entry, err := s.gate.GetKey(c.Params("name"))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(entry)
}

func (s *server) handleGetPolicy(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"bundle": string(s.gate.Bundle()), "summary": s.gate.String()})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message})
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": message})
}

func internalError(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": message})
}

func respondError(c *fiber.Ctx, err error) error {
	var denied chronerr.PolicyDenied
	if errors.As(err, &denied) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": denied.Error()})
	}

	var contradiction chronerr.Contradiction
	if errors.As(err, &contradiction) {
		mlog.FromContext(c.UserContext()).Infof("dispatch contradicted: %v", contradiction)

		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": contradiction.Error()})
	}

	mlog.FromContext(c.UserContext()).Errorf("dispatch failed: %v", err)

	return internalError(c, err.Error())
}
