package spaces

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/c10r/freetool-sub006/pkg/authz"
	"github.com/c10r/freetool-sub006/pkg/observability"
)

// maxSpaceNameLength bounds derived space names. Longer candidates truncate
// to a 91-char prefix plus "-" and an 8-hex-char hash of the full path.
const maxSpaceNameLength = 100

// OrgUnitProvisioner derives a space from a directory org-unit path,
// finds-or-creates it, seeds its initial relationship tuples and records the
// group mapping.
type OrgUnitProvisioner struct {
	spaces    Repository
	mappings  MappingStore
	tuples    TupleWriter
	keyPrefix string
	orgID     string
	logger    *observability.Logger
}

// NewOrgUnitProvisioner creates a provisioner. An empty keyPrefix defaults to
// "ou"; an empty orgID defaults to "default".
func NewOrgUnitProvisioner(spaces Repository, mappings MappingStore, tuples TupleWriter, keyPrefix, orgID string, logger *observability.Logger) *OrgUnitProvisioner {
	if keyPrefix == "" {
		keyPrefix = "ou"
	}
	if orgID == "" {
		orgID = "default"
	}
	return &OrgUnitProvisioner{
		spaces:    spaces,
		mappings:  mappings,
		tuples:    tuples,
		keyPrefix: keyPrefix,
		orgID:     orgID,
		logger:    logger,
	}
}

// EnsureSpaceForOrgUnit guarantees a space exists for the org-unit group key
// and an active mapping points at it. When the mapping already exists the
// call is a no-op. Any failure abandons the attempt; the mapping stays absent
// and the next request retries.
func (p *OrgUnitProvisioner) EnsureSpaceForOrgUnit(ctx context.Context, userID uuid.UUID, orgUnitKey string) error {
	path, ok := p.orgUnitPath(orgUnitKey)
	if !ok {
		return fmt.Errorf("%q is not an org-unit group key", orgUnitKey)
	}
	segments := splitPath(path)
	if len(segments) == 0 {
		return fmt.Errorf("org-unit key %q has an empty path", orgUnitKey)
	}

	// Already mapped: nothing to provision.
	existing, err := p.mappings.GetSpaceIDsByGroupKeys(ctx, []string{orgUnitKey})
	if err != nil {
		return fmt.Errorf("failed to check existing mapping: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	name, err := p.chooseName(ctx, path, segments)
	if err != nil {
		return err
	}

	space, err := p.spaces.GetByName(ctx, name)
	switch {
	case errors.Is(err, ErrSpaceNotFound):
		space, err = p.createSpace(ctx, userID, name)
		if err != nil {
			return err
		}

	case err != nil:
		return fmt.Errorf("failed to look up space %q: %w", name, err)

	default:
		// Reuse the existing space; its moderator stays untouched and only
		// the organization tuple is (re-)seeded.
		if terr := p.tuples.CreateRelationships(ctx, []authz.Tuple{
			authz.SpaceOrganizationTuple(p.orgID, space.ID),
		}); terr != nil {
			return fmt.Errorf("failed to seed organization tuple: %w", terr)
		}
	}

	err = p.mappings.Add(ctx, userID, orgUnitKey, space.ID)
	if err != nil && !errors.Is(err, ErrMappingExists) {
		return fmt.Errorf("failed to record mapping: %w", err)
	}

	p.logger.WithFields(map[string]interface{}{
		"space_id":  space.ID.String(),
		"group_key": orgUnitKey,
		"name":      name,
	}).Info("provisioned org-unit space")
	return nil
}

// chooseName picks the last path segment, falling back to the full path when
// a space with the short name already exists (sibling org units often share
// short names). Both candidates go through the length policy.
func (p *OrgUnitProvisioner) chooseName(ctx context.Context, path string, segments []string) (string, error) {
	preferred := TruncateSpaceName(segments[len(segments)-1], path)
	fallback := TruncateSpaceName(path, path)

	_, err := p.spaces.GetByName(ctx, preferred)
	if errors.Is(err, ErrSpaceNotFound) {
		return preferred, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up space %q: %w", preferred, err)
	}
	return fallback, nil
}

func (p *OrgUnitProvisioner) createSpace(ctx context.Context, userID uuid.UUID, name string) (*Space, error) {
	space := &Space{
		ID:              uuid.New(),
		Name:            name,
		ModeratorUserID: userID,
	}
	if err := p.spaces.Add(ctx, space); err != nil {
		return nil, fmt.Errorf("failed to create space %q: %w", name, err)
	}

	if err := p.tuples.CreateRelationships(ctx, []authz.Tuple{
		authz.SpaceOrganizationTuple(p.orgID, space.ID),
		authz.SpaceModeratorTuple(userID, space.ID),
	}); err != nil {
		return nil, fmt.Errorf("failed to seed space tuples: %w", err)
	}
	return space, nil
}

func (p *OrgUnitProvisioner) orgUnitPath(key string) (string, bool) {
	prefix := p.keyPrefix + ":"
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	return strings.TrimPrefix(key, prefix), true
}

func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// TruncateSpaceName enforces the name-length policy. The hash suffix derives
// from the full original path, so two long paths sharing a visible prefix
// still get distinct, deterministic names.
func TruncateSpaceName(candidate, fullPath string) string {
	if len(candidate) <= maxSpaceNameLength {
		return candidate
	}
	sum := sha256.Sum256([]byte(fullPath))
	suffix := hex.EncodeToString(sum[:4])
	return candidate[:maxSpaceNameLength-len(suffix)-1] + "-" + suffix
}
