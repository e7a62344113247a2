package models

import "testing"

func TestUserBalanceSelectsCurrencyColumn(t *testing.T) {
	u := &User{RealBalance: 120.50, VirtualBalance: 7.25}

	if got := u.Balance(CurrencyReal); got != 120.50 {
		t.Errorf("Balance(real) = %v, want 120.50", got)
	}
	if got := u.Balance(CurrencyVirtual); got != 7.25 {
		t.Errorf("Balance(virtual) = %v, want 7.25", got)
	}
}
