package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// MarketKey es la clave real de almacenamiento de un mercado: el digest
// SHA-256 del slug. El slug original se conserva dentro del registro
// solo para lookup inverso y enumeración.
type MarketKey [32]byte

// NewMarketKey deriva la clave de almacenamiento desde el slug.
func NewMarketKey(slug string) MarketKey {
	return sha256.Sum256([]byte(slug))
}

// Hex devuelve la clave codificada en hexadecimal (para storage y logs).
func (k MarketKey) Hex() string {
	return hex.EncodeToString(k[:])
}

// ParseMarketKey decodifica una clave hexadecimal producida por Hex.
func ParseMarketKey(s string) (MarketKey, error) {
	var k MarketKey
	b, err := hex.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("domain.ParseMarketKey: %w", err)
	}
	if len(b) != len(k) {
		return k, fmt.Errorf("domain.ParseMarketKey: want %d bytes, got %d", len(k), len(b))
	}
	copy(k[:], b)
	return k, nil
}

// Market es el registro de un mercado de predicción binario.
//
// Ciclo de vida: Open → Resolved o Voided, y nada más. Resolved y Voided
// son terminales; los flags nunca vuelven a false. Un mercado cancelado
// nunca paga vía claim aunque también esté resolved (auto-void).
type Market struct {
	Slug       string
	TotalYes   Amount
	TotalNo    Amount
	Deadline   time.Time // zero = sin deadline
	Resolved   bool
	OutcomeYes bool // solo tiene sentido si Resolved
	Cancelled  bool
	Exists     bool // distingue "nunca creado" de "creado con cero stakes"
}

// TotalPool devuelve el valor total custodiado del mercado.
func (m Market) TotalPool() Amount {
	return m.TotalYes + m.TotalNo
}

// WinningPool devuelve el pool del lado ganador. Solo válido si Resolved.
func (m Market) WinningPool() Amount {
	if m.OutcomeYes {
		return m.TotalYes
	}
	return m.TotalNo
}

// HasDeadline indica si el mercado tiene deadline configurado.
func (m Market) HasDeadline() bool {
	return !m.Deadline.IsZero()
}

// ExpiredAt indica si el deadline ya pasó en el instante dado.
func (m Market) ExpiredAt(now time.Time) bool {
	return m.HasDeadline() && now.After(m.Deadline)
}

// RefundableAt indica si el mercado admite refunds en el instante dado:
// o bien está cancelado, o bien expiró hace más de grace sin resolverse.
// La segunda rama es la transición Voided perezosa: el primer refund
// que la use materializa Cancelled=true.
func (m Market) RefundableAt(now time.Time, grace time.Duration) bool {
	if m.Cancelled {
		return true
	}
	return m.HasDeadline() && !m.Resolved && now.After(m.Deadline.Add(grace))
}

// Status devuelve el estado legible del mercado.
func (m Market) Status() string {
	switch {
	case !m.Exists:
		return "unknown"
	case m.Cancelled:
		return "voided"
	case m.Resolved && m.OutcomeYes:
		return "resolved-yes"
	case m.Resolved:
		return "resolved-no"
	default:
		return "open"
	}
}
