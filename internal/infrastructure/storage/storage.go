package storage

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
)

// ErrInvalidSymbol 合约标识为空或包含路径字符
var ErrInvalidSymbol = errors.New("invalid instrument symbol")

// ErrUnknownBackend 未知的存储后端
var ErrUnknownBackend = errors.New("unknown storage backend")

// CorruptRecord 读取时被跳过的损坏记录
type CorruptRecord struct {
	Symbol   string
	Position int // line number or row id
	Reason   string
}

func (c CorruptRecord) String() string {
	return fmt.Sprintf("%s@%d: %s", c.Symbol, c.Position, c.Reason)
}

// ValidateSymbol 标识只允许字母、数字、'_'、'-'，保证不会越出存储目录
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return ErrInvalidSymbol
	}
	for _, r := range symbol {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == '-':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
		}
	}
	return nil
}

// Finite NaN/Inf 视为损坏数据
func Finite(xs ...float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// ReportCorrupt 每次读取汇总一条告警，避免逐行刷屏
func ReportCorrupt(log zerolog.Logger, symbol string, skipped []CorruptRecord) {
	if len(skipped) == 0 {
		return
	}
	reasons := make([]string, 0, 3)
	for i, c := range skipped {
		if i == 3 {
			break
		}
		reasons = append(reasons, c.String())
	}
	log.Warn().
		Str("symbol", symbol).
		Int("skipped", len(skipped)).
		Str("first", strings.Join(reasons, "; ")).
		Msg("skipped malformed history records")
}
