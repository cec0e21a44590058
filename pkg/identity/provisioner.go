package identity

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/c10r/freetool-sub006/pkg/observability"
)

// OrgBootstrapper grants the organization-admin relationship for the
// configured admin user. Implemented by the authz client.
type OrgBootstrapper interface {
	InitializeOrganization(ctx context.Context, orgID string, adminUserID uuid.UUID) error
}

// SpaceProvisioner ensures a space exists for an org-unit group key.
// Implemented by the spaces package.
type SpaceProvisioner interface {
	EnsureSpaceForOrgUnit(ctx context.Context, userID uuid.UUID, orgUnitKey string) error
}

// MembershipReconciler applies the membership diff implied by the user's
// current group keys. It never fails the caller; per-item failures are logged
// internally.
type MembershipReconciler interface {
	Reconcile(ctx context.Context, userID uuid.UUID, groupKeys []string)
}

// ProvisionerConfig carries the configuration surface consumed by the
// provisioner.
type ProvisionerConfig struct {
	// OrgAdminEmail, when set, marks the user with this email (compared
	// case-insensitively) as the organization admin on login.
	OrgAdminEmail string

	// OrganizationID is the default organization tuples are written against.
	OrganizationID string
}

// Provisioner sequences just-in-time identity provisioning: validate email,
// find-or-create-or-activate the user, then run best-effort authorization
// side effects.
type Provisioner struct {
	users      Repository
	resolver   *GroupKeyResolver
	bootstrap  OrgBootstrapper
	spaces     SpaceProvisioner
	reconciler MembershipReconciler
	cfg        ProvisionerConfig
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// NewProvisioner creates a provisioner. bootstrap, spaces and reconciler may
// be nil, disabling the corresponding soft step.
func NewProvisioner(
	users Repository,
	resolver *GroupKeyResolver,
	bootstrap OrgBootstrapper,
	spaces SpaceProvisioner,
	reconciler MembershipReconciler,
	cfg ProvisionerConfig,
	logger *observability.Logger,
	metrics *observability.Metrics,
) *Provisioner {
	if cfg.OrganizationID == "" {
		cfg.OrganizationID = "default"
	}
	return &Provisioner{
		users:      users,
		resolver:   resolver,
		bootstrap:  bootstrap,
		spaces:     spaces,
		reconciler: reconciler,
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
	}
}

// EnsureUser resolves the claim to a user id, creating or activating the user
// as needed. Email validation and user persistence failures are fatal;
// authorization side effects (org-admin bootstrap, org-unit space
// provisioning, membership reconciliation) are best-effort and never fail the
// call.
func (p *Provisioner) EnsureUser(ctx context.Context, claim Claim) (uuid.UUID, error) {
	start := time.Now()

	email, err := CanonicalEmail(claim.Email)
	if err != nil {
		p.countOutcome("invalid_email")
		return uuid.Nil, &ProvisioningError{Step: StepValidateEmail, Email: claim.Email, Err: err}
	}

	user, outcome, err := p.resolveUser(ctx, email, claim)
	if err != nil {
		p.countOutcome("error")
		return uuid.Nil, err
	}
	p.countOutcome(outcome)

	if serr := p.bootstrapOrgAdmin(ctx, user, email); serr != nil {
		p.swallow(user.ID, serr)
	}

	keys := p.resolver.Normalize(claim.GroupKeys)

	if serr := p.provisionOrgUnitSpace(ctx, user.ID, keys); serr != nil {
		p.swallow(user.ID, serr)
	}

	if p.reconciler != nil {
		p.reconciler.Reconcile(ctx, user.ID, keys)
	}

	if p.metrics != nil {
		p.metrics.ProvisioningDuration.Observe(time.Since(start).Seconds())
	}
	return user.ID, nil
}

// resolveUser is the hard-gate portion: find, create, or activate.
func (p *Provisioner) resolveUser(ctx context.Context, email string, claim Claim) (*User, string, error) {
	user, err := p.users.GetByEmail(ctx, email)
	switch {
	case err == nil && user.IsPlaceholder():
		if err := p.activate(ctx, user, claim); err != nil {
			return nil, "", err
		}
		return user, "activated", nil

	case err == nil:
		return user, "resolved", nil

	case err == ErrNotFound:
		created, err := p.create(ctx, email, claim)
		if err != nil {
			return nil, "", err
		}
		return created, "created", nil

	default:
		return nil, "", &ProvisioningError{Step: StepCreateUser, Email: email, Err: err}
	}
}

// create inserts a new user. When a concurrent request won the insert race,
// the unique-violation is resolved by re-reading the row.
func (p *Provisioner) create(ctx context.Context, email string, claim Claim) (*User, error) {
	user := &User{
		ID:                uuid.New(),
		Email:             email,
		Name:              strings.TrimSpace(claim.Name),
		ProfilePictureURL: strings.TrimSpace(claim.ProfilePictureURL),
	}
	err := p.users.Add(ctx, user)
	if err == ErrDuplicateEmail {
		existing, gerr := p.users.GetByEmail(ctx, email)
		if gerr != nil {
			return nil, &ProvisioningError{Step: StepCreateUser, Email: email, Err: gerr}
		}
		return existing, nil
	}
	if err != nil {
		return nil, &ProvisioningError{Step: StepCreateUser, Email: email, Err: err}
	}
	p.logger.WithField("user_id", user.ID.String()).WithField("source", claim.Source).Info("created user")
	return user, nil
}

// activate converts a placeholder user into a full user. Name and picture are
// filled only when the stored value is empty and the incoming value is not.
func (p *Provisioner) activate(ctx context.Context, user *User, claim Claim) error {
	user.InvitedAt = nil
	if user.Name == "" && strings.TrimSpace(claim.Name) != "" {
		user.Name = strings.TrimSpace(claim.Name)
	}
	if user.ProfilePictureURL == "" && strings.TrimSpace(claim.ProfilePictureURL) != "" {
		user.ProfilePictureURL = strings.TrimSpace(claim.ProfilePictureURL)
	}
	if err := p.users.Update(ctx, user); err != nil {
		return &ProvisioningError{Step: StepSaveActivatedUser, Email: user.Email, Err: err}
	}
	p.logger.WithField("user_id", user.ID.String()).Info("activated placeholder user")
	return nil
}

func (p *Provisioner) bootstrapOrgAdmin(ctx context.Context, user *User, email string) *SoftError {
	if p.bootstrap == nil || p.cfg.OrgAdminEmail == "" {
		return nil
	}
	if !strings.EqualFold(strings.TrimSpace(p.cfg.OrgAdminEmail), email) {
		return nil
	}
	if err := p.bootstrap.InitializeOrganization(ctx, p.cfg.OrganizationID, user.ID); err != nil {
		return &SoftError{Step: StepBootstrapOrgAdmin, Err: err}
	}
	return nil
}

func (p *Provisioner) provisionOrgUnitSpace(ctx context.Context, userID uuid.UUID, keys []string) *SoftError {
	if p.spaces == nil {
		return nil
	}
	ouKey, ok := p.resolver.DeepestOrgUnitKey(keys)
	if !ok {
		return nil
	}
	if err := p.spaces.EnsureSpaceForOrgUnit(ctx, userID, ouKey); err != nil {
		return &SoftError{Step: StepProvisionOrgUnit, Err: err}
	}
	return nil
}

// swallow logs and counts a soft failure. The user still resolves.
func (p *Provisioner) swallow(userID uuid.UUID, serr *SoftError) {
	p.logger.WithError(serr.Err).
		WithField("user_id", userID.String()).
		WithField("step", string(serr.Step)).
		Warn("authorization side effect failed, continuing")
	if p.metrics != nil {
		p.metrics.SoftFailuresTotal.WithLabelValues(string(serr.Step)).Inc()
	}
}

func (p *Provisioner) countOutcome(outcome string) {
	if p.metrics != nil {
		p.metrics.ProvisioningTotal.WithLabelValues(outcome).Inc()
	}
}

// CanonicalEmail lowercases and trims the email and validates its format.
func CanonicalEmail(email string) (string, error) {
	canonical := strings.ToLower(strings.TrimSpace(email))
	if canonical == "" {
		return "", ErrInvalidEmailFormat
	}
	addr, err := mail.ParseAddress(canonical)
	if err != nil || addr.Address != canonical {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmailFormat, email)
	}
	return canonical, nil
}
