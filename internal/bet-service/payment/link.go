package payment

import (
	"errors"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrNoHandle = errors.New("payee has no payment handle")

// Linker monta o deep link do app de pagamento (ex.: https://venmo.com/<handle>?txn=pay&amount=10.00)
// Não executa pagamento nenhum; o link é só uma conveniência para o cliente.
type Linker struct {
	BaseURL string
}

func NewLinker(base string) *Linker {
	return &Linker{BaseURL: strings.TrimSuffix(base, "/")}
}

// Link retorna a URL pré-preenchida com handle, valor e nota
func (l *Linker) Link(handle string, amount decimal.Decimal, note string) (string, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		return "", ErrNoHandle
	}
	if !amount.IsPositive() {
		return "", errors.New("amount must be positive")
	}
	base, err := url.Parse(l.BaseURL)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("txn", "pay")
	q.Set("amount", amount.StringFixed(2))
	if note != "" {
		q.Set("note", note)
	}
	base.Path = strings.TrimSuffix(base.Path, "/") + "/" + handle
	base.RawQuery = q.Encode()
	return base.String(), nil
}
