package provision

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/doodlesbykumbi/okapictl/pkg/audit"
	"github.com/doodlesbykumbi/okapictl/pkg/logging"
	"github.com/doodlesbykumbi/okapictl/pkg/okapi"
	"github.com/doodlesbykumbi/okapictl/pkg/session"
)

// Client is the subset of the Okapi client the provisioner drives.
type Client interface {
	Login(ctx context.Context, creds okapi.Credentials) (string, error)
	FindUser(ctx context.Context, username string) (*okapi.User, error)
	Permissions(ctx context.Context, userID string) (*okapi.PermissionSet, error)
	Grant(ctx context.Context, userID, name string) error
}

// Auditor receives audit events.
type Auditor interface {
	Log(event audit.Event)
}

// Options describe one provisioning run.
type Options struct {
	OkapiURL    string
	Tenant      string
	Credentials okapi.Credentials

	// TargetUser receives the permissions. Empty means the login user.
	TargetUser string

	// Permissions are granted in order.
	Permissions []string

	// CheckExisting skips permissions the user already holds.
	CheckExisting bool

	// DryRun reports what would be granted without issuing grants.
	DryRun bool
}

func (o Options) target() string {
	if o.TargetUser != "" {
		return o.TargetUser
	}
	return o.Credentials.Username
}

// GrantResult is the outcome of one permission in the grant loop.
type GrantResult struct {
	Permission string  `json:"permission"`
	Outcome    Outcome `json:"outcome"`
	StatusCode int     `json:"status_code,omitempty"`
	Detail     string  `json:"detail,omitempty"`
}

// Report summarises a run. Before and After are reported verbatim; no delta
// is computed or checked.
type Report struct {
	Tenant   string        `json:"tenant"`
	Username string        `json:"username"`
	UserID   string        `json:"user_id,omitempty"`
	Before   int           `json:"before"`
	After    int           `json:"after"`
	DryRun   bool          `json:"dry_run,omitempty"`
	Results  []GrantResult `json:"results"`
}

// Count returns how many results have outcome o.
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Failed returns the results that did not succeed.
func (r *Report) Failed() []GrantResult {
	var failed []GrantResult
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			failed = append(failed, res)
		}
	}
	return failed
}

// Provisioner grants a fixed list of permissions to one user.
type Provisioner struct {
	client  Client
	opts    Options
	out     io.Writer
	auditor Auditor
	logger  log.Logger
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithAuditor sends audit events to a.
func WithAuditor(a Auditor) Option {
	return func(p *Provisioner) {
		p.auditor = a
	}
}

// WithLogger sets the operational logger.
func WithLogger(logger log.Logger) Option {
	return func(p *Provisioner) {
		if logger != nil {
			p.logger = logging.Component(logger, "provisioner")
		}
	}
}

// New creates a Provisioner that prints its console report to out.
func New(client Client, opts Options, out io.Writer, options ...Option) *Provisioner {
	p := &Provisioner{
		client: client,
		opts:   opts,
		out:    out,
		logger: logging.Nop(),
	}
	for _, o := range options {
		o(p)
	}
	return p
}

// Run authenticates, resolves the target user, reports the permission count,
// grants each permission and reports the count again.
//
// Login, user resolution and counting failures stop the run and are
// returned. Individual grant failures are printed and the loop continues.
// The returned Report holds whatever was gathered before a fatal error.
func (p *Provisioner) Run(ctx context.Context) (*Report, error) {
	target := p.opts.target()
	report := &Report{
		Tenant:   p.opts.Tenant,
		Username: target,
		DryRun:   p.opts.DryRun,
		Results:  []GrantResult{},
	}

	sess, err := p.login(ctx)
	if err != nil {
		return report, err
	}
	ctx = session.Set(ctx, sess)

	user, err := p.resolve(ctx, target)
	if err != nil {
		return report, err
	}
	report.UserID = user.ID

	before, err := p.count(ctx, user.ID, "before")
	if err != nil {
		return report, err
	}
	report.Before = before.TotalRecords

	for _, name := range p.opts.Permissions {
		if err := ctx.Err(); err != nil {
			return report, p.interrupted(user.ID, report, err)
		}
		result, err := p.grant(ctx, user.ID, name, before)
		if err != nil {
			return report, p.interrupted(user.ID, report, err)
		}
		report.Results = append(report.Results, result)
	}

	if p.opts.DryRun {
		report.After = report.Before
		return report, nil
	}

	after, err := p.count(ctx, user.ID, "after")
	if err != nil {
		return report, err
	}
	report.After = after.TotalRecords

	level.Info(p.logger).Log(
		"msg", "provisioning finished",
		"user_id", user.ID,
		"granted", report.Count(OutcomeGranted),
		"failed", report.Count(OutcomeFailed),
		"skipped", report.Count(OutcomeSkipped),
	)
	return report, nil
}

func (p *Provisioner) login(ctx context.Context) (*session.Session, error) {
	username := p.opts.Credentials.Username
	token, err := p.client.Login(ctx, p.opts.Credentials)
	if err != nil {
		p.audit(audit.LoginEvent{
			Tenant:       p.opts.Tenant,
			Username:     username,
			OkapiURL:     p.opts.OkapiURL,
			ErrorMessage: err.Error(),
		})
		level.Error(p.logger).Log("msg", "login failed", "username", username, "err", err)
		return nil, fmt.Errorf("login as %s: %w", username, err)
	}

	sess := session.New(p.opts.Tenant, username, token)
	p.audit(audit.LoginEvent{
		Tenant:   p.opts.Tenant,
		Username: username,
		OkapiURL: p.opts.OkapiURL,
		Success:  true,
	})
	if claims, ok := sess.Claims(); ok {
		level.Debug(p.logger).Log("msg", "logged in", "sub", claims.Subject, "user_id", claims.UserID, "tenant", claims.Tenant)
	} else {
		level.Debug(p.logger).Log("msg", "logged in", "username", username)
	}
	return sess, nil
}

func (p *Provisioner) resolve(ctx context.Context, username string) (*okapi.User, error) {
	actor := actorFrom(ctx)
	user, err := p.client.FindUser(ctx, username)
	if err != nil {
		p.audit(audit.UserLookupEvent{
			Actor:        actor,
			Tenant:       p.opts.Tenant,
			Username:     username,
			ErrorMessage: err.Error(),
		})
		level.Error(p.logger).Log("msg", "user lookup failed", "username", username, "err", err)
		return nil, fmt.Errorf("resolve user %s: %w", username, err)
	}

	p.audit(audit.UserLookupEvent{
		Actor:    actor,
		Tenant:   p.opts.Tenant,
		Username: username,
		UserID:   user.ID,
		Success:  true,
	})
	level.Debug(p.logger).Log("msg", "resolved user", "username", username, "user_id", user.ID)
	return user, nil
}

func (p *Provisioner) count(ctx context.Context, userID, phase string) (*okapi.PermissionSet, error) {
	perms, err := p.client.Permissions(ctx, userID)
	if err != nil {
		p.audit(audit.PermissionCountEvent{
			Actor:        actorFrom(ctx),
			Tenant:       p.opts.Tenant,
			UserID:       userID,
			Phase:        phase,
			ErrorMessage: err.Error(),
		})
		level.Error(p.logger).Log("msg", "permission count failed", "user_id", userID, "phase", phase, "err", err)
		return nil, fmt.Errorf("count permissions for %s: %w", userID, err)
	}

	p.audit(audit.PermissionCountEvent{
		Actor:  actorFrom(ctx),
		Tenant: p.opts.Tenant,
		UserID: userID,
		Phase:  phase,
		Total:  perms.TotalRecords,
	})
	fmt.Fprintf(p.out, "Number of permissions: %d\n", perms.TotalRecords)
	return perms, nil
}

// grant attempts one permission. An error is returned only when ctx was
// cancelled while the grant was in flight; nothing is printed or audited then.
func (p *Provisioner) grant(ctx context.Context, userID, name string, existing *okapi.PermissionSet) (GrantResult, error) {
	result := GrantResult{Permission: name}

	switch {
	case p.opts.CheckExisting && existing.Has(name):
		result.Outcome = OutcomeSkipped
		fmt.Fprintf(p.out, "Permission already assigned: %s\n", name)
	case p.opts.DryRun:
		result.Outcome = OutcomePlanned
		fmt.Fprintf(p.out, "Would add permission: %s\n", name)
	default:
		err := p.client.Grant(ctx, userID, name)
		if err == nil {
			result.Outcome = OutcomeGranted
			result.StatusCode = 200
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}

		result.Outcome = OutcomeFailed
		var statusErr *okapi.StatusError
		if errors.As(err, &statusErr) {
			result.StatusCode = statusErr.Code
			result.Detail = statusErr.Body
			fmt.Fprintf(p.out, "Adding permission failed: [%d] %s\n", statusErr.Code, statusErr.Body)
		} else {
			result.Detail = err.Error()
			fmt.Fprintf(p.out, "Adding permission failed: %v\n", err)
		}
		level.Warn(p.logger).Log("msg", "grant failed", "permission", name, "status", result.StatusCode, "err", err)
	}

	p.audit(audit.GrantEvent{
		Actor:      actorFrom(ctx),
		Tenant:     p.opts.Tenant,
		UserID:     userID,
		Permission: name,
		Outcome:    result.Outcome.String(),
		StatusCode: result.StatusCode,
		Detail:     result.Detail,
	})
	return result, nil
}

func (p *Provisioner) interrupted(userID string, report *Report, err error) error {
	remaining := len(p.opts.Permissions) - len(report.Results)
	level.Warn(p.logger).Log("msg", "provisioning interrupted", "user_id", userID, "remaining", remaining, "err", err)
	return fmt.Errorf("provisioning interrupted with %d permissions remaining: %w", remaining, err)
}

func (p *Provisioner) audit(event audit.Event) {
	if p.auditor != nil {
		p.auditor.Log(event)
	}
}

func actorFrom(ctx context.Context) string {
	if sess, ok := session.Get(ctx); ok {
		return sess.Subject()
	}
	return ""
}
