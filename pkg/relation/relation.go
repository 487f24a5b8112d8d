package relation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// Kind discriminates the entity a Ref points at. The set is closed.
type Kind string

const (
	KindProperty Kind = "property"
	KindTenant   Kind = "tenant"
	KindLease    Kind = "lease"
	KindVacancy  Kind = "vacancy"
	KindPayment  Kind = "payment"
	KindTeam     Kind = "team"
)

var ErrUnknownKind = errors.New("unknown_relation_kind")

var kinds = map[Kind]struct{}{
	KindProperty: {},
	KindTenant:   {},
	KindLease:    {},
	KindVacancy:  {},
	KindPayment:  {},
	KindTeam:     {},
}

func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

func ParseKind(raw string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(raw)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
	}
	return k, nil
}

// Ref is a typed reference to another record.
type Ref struct {
	Kind Kind         `json:"kind"`
	ID   snowflake.ID `json:"id"`
}

func New(kind Kind, id snowflake.ID) Ref {
	return Ref{Kind: kind, ID: id}
}

func Property(id snowflake.ID) Ref { return New(KindProperty, id) }
func Tenant(id snowflake.ID) Ref   { return New(KindTenant, id) }
func Lease(id snowflake.ID) Ref    { return New(KindLease, id) }
func Vacancy(id snowflake.ID) Ref  { return New(KindVacancy, id) }
func Payment(id snowflake.ID) Ref  { return New(KindPayment, id) }

func (r Ref) Valid() bool {
	return r.Kind.Valid() && r.ID != 0
}

func (r Ref) String() string {
	return string(r.Kind) + ":" + r.ID.String()
}

// Parse reads the "kind:id" form produced by String.
func Parse(raw string) (Ref, error) {
	kindPart, idPart, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return Ref{}, fmt.Errorf("%w: %q", ErrUnknownKind, raw)
	}
	kind, err := ParseKind(kindPart)
	if err != nil {
		return Ref{}, err
	}
	id, err := snowflake.ParseString(idPart)
	if err != nil || id == 0 {
		return Ref{}, fmt.Errorf("invalid relation id %q", idPart)
	}
	return Ref{Kind: kind, ID: id}, nil
}
