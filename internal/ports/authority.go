package ports

import "github.com/alejandrodnm/betledger/internal/domain"

// AuthorityCheck decide si un caller puede ejecutar operaciones de
// administración (resolve, cancel, set-deadline, sweep). Inyectarlo
// como predicado permite multisig o rotación sin tocar el engine.
type AuthorityCheck interface {
	IsAuthority(p domain.Participant) bool
}

// AuthorityFunc adapta una función como AuthorityCheck.
type AuthorityFunc func(domain.Participant) bool

func (f AuthorityFunc) IsAuthority(p domain.Participant) bool { return f(p) }

// SingleAuthority es el caso común: una única identidad autorizada.
type SingleAuthority domain.Participant

func (a SingleAuthority) IsAuthority(p domain.Participant) bool {
	return domain.Participant(a) == p
}
