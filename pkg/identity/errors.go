package identity

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the repository and provisioner.
var (
	ErrNotFound           = errors.New("user not found")
	ErrDuplicateEmail     = errors.New("a user with this email already exists")
	ErrInvalidEmailFormat = errors.New("invalid email format")
)

// Step identifies where in the provisioning sequence a failure occurred.
type Step string

const (
	StepValidateEmail     Step = "validate_email"
	StepCreateUser        Step = "create_user"
	StepActivateUser      Step = "activate_user"
	StepSaveActivatedUser Step = "save_activated_user"

	StepBootstrapOrgAdmin    Step = "bootstrap_org_admin"
	StepProvisionOrgUnit     Step = "provision_org_unit_space"
	StepReconcileMemberships Step = "reconcile_memberships"
)

// ProvisioningError is a hard failure: the caller must reject the request
// rather than let an unresolved identity through.
type ProvisioningError struct {
	Step  Step
	Email string
	Err   error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning failed at %s for %s: %v", e.Step, e.Email, e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// SoftError is a failed authorization side-effect. It is logged and dropped
// by the orchestrator, never returned to the caller. The separate type keeps
// hard failures from being swallowed by accident.
type SoftError struct {
	Step Step
	Err  error
}

func (e *SoftError) Error() string {
	return fmt.Sprintf("soft failure at %s: %v", e.Step, e.Err)
}

func (e *SoftError) Unwrap() error {
	return e.Err
}
