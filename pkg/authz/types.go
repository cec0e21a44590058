package authz

import (
	"fmt"

	"github.com/google/uuid"
)

// Relation is a closed set of domain relations written to the tuple store.
type Relation string

const (
	RelationMember       Relation = "member"
	RelationModerator    Relation = "moderator"
	RelationOrganization Relation = "organization"
	RelationAdmin        Relation = "admin"

	RelationAppCreate Relation = "app_create"
	RelationAppEdit   Relation = "app_edit"
	RelationAppDelete Relation = "app_delete"
	RelationAppRun    Relation = "app_run"

	RelationResourceCreate Relation = "resource_create"
	RelationResourceEdit   Relation = "resource_edit"
	RelationResourceDelete Relation = "resource_delete"

	RelationFolderCreate Relation = "folder_create"
	RelationFolderEdit   Relation = "folder_edit"
	RelationFolderDelete Relation = "folder_delete"
)

// ObjectType identifies the kind of object a tuple targets.
type ObjectType string

const (
	ObjectTypeSpace        ObjectType = "space"
	ObjectTypeTeam         ObjectType = "team"
	ObjectTypeOrganization ObjectType = "organization"
	ObjectTypeApp          ObjectType = "app"
	ObjectTypeResource     ObjectType = "resource"
	ObjectTypeFolder       ObjectType = "folder"
)

// Object is the target of a relationship tuple.
type Object struct {
	Type ObjectType
	ID   string
}

// SpaceObject references a space by id.
func SpaceObject(id uuid.UUID) Object {
	return Object{Type: ObjectTypeSpace, ID: id.String()}
}

// TeamObject references a team by id.
func TeamObject(id uuid.UUID) Object {
	return Object{Type: ObjectTypeTeam, ID: id.String()}
}

// OrganizationObject references an organization by its configured id.
func OrganizationObject(id string) Object {
	return Object{Type: ObjectTypeOrganization, ID: id}
}

// AppObject references an app by id.
func AppObject(id uuid.UUID) Object {
	return Object{Type: ObjectTypeApp, ID: id.String()}
}

// ResourceObject references a resource by id.
func ResourceObject(id uuid.UUID) Object {
	return Object{Type: ObjectTypeResource, ID: id.String()}
}

// FolderObject references a folder by id.
func FolderObject(id uuid.UUID) Object {
	return Object{Type: ObjectTypeFolder, ID: id.String()}
}

// String renders the object in the store's wire form, e.g. "space:<id>".
func (o Object) String() string {
	switch o.Type {
	case ObjectTypeSpace, ObjectTypeTeam, ObjectTypeOrganization,
		ObjectTypeApp, ObjectTypeResource, ObjectTypeFolder:
		return string(o.Type) + ":" + o.ID
	default:
		// Unknown object types must never reach the wire silently.
		panic(fmt.Sprintf("authz: unknown object type %q", o.Type))
	}
}

// SubjectKind discriminates the subject union.
type SubjectKind int

const (
	SubjectKindUser SubjectKind = iota
	SubjectKindTeam
	SubjectKindOrganization
	SubjectKindUserset
)

// Subject is the actor side of a relationship tuple. It is a tagged union of a
// user, a team, an organization, or a userset reference (all subjects holding
// a relation on an object, e.g. every admin of an organization).
type Subject struct {
	Kind     SubjectKind
	ID       string
	Relation Relation // userset only
	Object   Object   // userset only
}

// UserSubject references a user by id.
func UserSubject(id uuid.UUID) Subject {
	return Subject{Kind: SubjectKindUser, ID: id.String()}
}

// TeamSubject references a team by id.
func TeamSubject(id uuid.UUID) Subject {
	return Subject{Kind: SubjectKindTeam, ID: id.String()}
}

// OrganizationSubject references an organization by its configured id.
func OrganizationSubject(id string) Subject {
	return Subject{Kind: SubjectKindOrganization, ID: id}
}

// UsersetSubject references every subject holding relation on object.
func UsersetSubject(object Object, relation Relation) Subject {
	return Subject{Kind: SubjectKindUserset, Relation: relation, Object: object}
}

// String renders the subject in the store's wire form, e.g. "user:<id>" or
// "organization:default#admin" for usersets.
func (s Subject) String() string {
	switch s.Kind {
	case SubjectKindUser:
		return "user:" + s.ID
	case SubjectKindTeam:
		return "team:" + s.ID
	case SubjectKindOrganization:
		return "organization:" + s.ID
	case SubjectKindUserset:
		return s.Object.String() + "#" + string(s.Relation)
	default:
		panic(fmt.Sprintf("authz: unknown subject kind %d", s.Kind))
	}
}

// Tuple is the unit of write to the external relationship store.
type Tuple struct {
	Subject  Subject
	Relation Relation
	Object   Object
}

// Validate rejects relation/object pairings outside the authorization model.
// The pairing table is exhaustive over ObjectType.
func (t Tuple) Validate() error {
	var allowed []Relation
	switch t.Object.Type {
	case ObjectTypeSpace:
		allowed = []Relation{
			RelationMember, RelationModerator, RelationOrganization,
			RelationAppCreate, RelationResourceCreate, RelationFolderCreate,
		}
	case ObjectTypeTeam:
		allowed = []Relation{RelationMember, RelationAdmin}
	case ObjectTypeOrganization:
		allowed = []Relation{RelationMember, RelationAdmin}
	case ObjectTypeApp:
		allowed = []Relation{RelationAppEdit, RelationAppDelete, RelationAppRun}
	case ObjectTypeResource:
		allowed = []Relation{RelationResourceEdit, RelationResourceDelete}
	case ObjectTypeFolder:
		allowed = []Relation{RelationFolderEdit, RelationFolderDelete}
	default:
		return fmt.Errorf("unknown object type %q", t.Object.Type)
	}

	for _, r := range allowed {
		if t.Relation == r {
			return nil
		}
	}
	return fmt.Errorf("relation %q is not valid for object type %q", t.Relation, t.Object.Type)
}

// SpaceMemberTuple grants a user membership of a space.
func SpaceMemberTuple(userID, spaceID uuid.UUID) Tuple {
	return Tuple{Subject: UserSubject(userID), Relation: RelationMember, Object: SpaceObject(spaceID)}
}

// SpaceModeratorTuple grants a user moderation of a space.
func SpaceModeratorTuple(userID, spaceID uuid.UUID) Tuple {
	return Tuple{Subject: UserSubject(userID), Relation: RelationModerator, Object: SpaceObject(spaceID)}
}

// SpaceOrganizationTuple binds a space to an organization so that org admins
// inherit permissions on it transitively.
func SpaceOrganizationTuple(orgID string, spaceID uuid.UUID) Tuple {
	return Tuple{Subject: OrganizationSubject(orgID), Relation: RelationOrganization, Object: SpaceObject(spaceID)}
}

// OrganizationAdminTuple grants a user the admin relation on an organization.
func OrganizationAdminTuple(userID uuid.UUID, orgID string) Tuple {
	return Tuple{Subject: UserSubject(userID), Relation: RelationAdmin, Object: OrganizationObject(orgID)}
}
