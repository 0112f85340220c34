package chain

import (
	"errors"
	"math/big"
	"strings"
)

const weiPrecision = 18

var weiPerEth = new(big.Int).Exp(big.NewInt(10), big.NewInt(weiPrecision), nil)

// ParseEthAsWei converts a positive decimal ETH amount such as "0.001" to
// wei. Amounts finer than one wei are rejected.
func ParseEthAsWei(str string) (*big.Int, error) {
	str = strings.TrimSpace(str)
	whole, frac, _ := strings.Cut(str, ".")
	if whole == "" && frac == "" {
		return nil, errors.New("invalid amount: empty")
	}

	if len(frac) > weiPrecision {
		for _, c := range frac[weiPrecision:] {
			if c != '0' {
				return nil, errors.New("invalid or too precise amount")
			}
		}
		frac = frac[:weiPrecision]
	}
	if strings.ContainsAny(frac, "+-") {
		return nil, errors.New("invalid amount")
	}
	digits := whole + frac + strings.Repeat("0", weiPrecision-len(frac))

	wei, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, errors.New("invalid amount")
	}
	switch wei.Sign() {
	case -1:
		return nil, errors.New("invalid amount: cannot be negative")
	case 0:
		return nil, errors.New("invalid amount: cannot be zero")
	}
	return wei, nil
}

// FormatWeiAsEth renders wei as a decimal ETH string without trailing zeros.
func FormatWeiAsEth(w *big.Int) string {
	if w.Sign() == 0 {
		return "0"
	}
	q, r := new(big.Int).QuoRem(w, weiPerEth, new(big.Int))
	if r.Sign() == 0 {
		return q.String()
	}
	frac := r.String()
	frac = strings.Repeat("0", weiPrecision-len(frac)) + frac
	return q.String() + "." + strings.TrimRight(frac, "0")
}
