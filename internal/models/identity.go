package models

type IdentityKind string

const (
	IdentityAccount  IdentityKind = "account"
	IdentityGuest    IdentityKind = "guest"
	IdentityOperator IdentityKind = "operator"
)

// Identity is the resolved party behind a connection or request: a registered
// account, an anonymous guest, or a staff operator. Exactly one of the
// reference fields is populated, selected by Kind.
type Identity struct {
	Kind        IdentityKind `json:"kind"`
	AccountID   string       `json:"account_id,omitempty"`
	GuestToken  string       `json:"guest_token,omitempty"`
	OperatorID  string       `json:"operator_id,omitempty"`
	Permissions []string     `json:"permissions,omitempty"`
}

func AccountIdentity(id string) Identity {
	return Identity{Kind: IdentityAccount, AccountID: id}
}

func GuestIdentity(token string) Identity {
	return Identity{Kind: IdentityGuest, GuestToken: token}
}

func OperatorIdentity(id string, permissions []string) Identity {
	return Identity{Kind: IdentityOperator, OperatorID: id, Permissions: permissions}
}

// Key returns the stable identity key used for presence lookups and
// identity rooms, e.g. "account:42" or "guest:guest_...".
func (i Identity) Key() string {
	switch i.Kind {
	case IdentityAccount:
		return "account:" + i.AccountID
	case IdentityOperator:
		return "operator:" + i.OperatorID
	default:
		return "guest:" + i.GuestToken
	}
}

// Ref returns the raw reference behind the identity (account id,
// operator id or guest token).
func (i Identity) Ref() string {
	switch i.Kind {
	case IdentityAccount:
		return i.AccountID
	case IdentityOperator:
		return i.OperatorID
	default:
		return i.GuestToken
	}
}

func (i Identity) IsOperator() bool {
	return i.Kind == IdentityOperator
}

// SenderKind maps the identity to the sender kind stored on messages.
func (i Identity) SenderKind() SenderKind {
	switch i.Kind {
	case IdentityAccount:
		return SenderAccount
	case IdentityOperator:
		return SenderOperator
	default:
		return SenderGuest
	}
}

func (i Identity) HasPermission(perm string) bool {
	for _, p := range i.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}
