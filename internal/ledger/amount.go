package ledger

import (
	"math"
	"math/bits"
)

func addAmount(a, b int64) (int64, error) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// feeOf 计算 floor(amount * percent / 100)
// 拆成商和余数两部分相乘，结果精确且不会溢出
func feeOf(amount, percent int64) int64 {
	return amount/100*percent + amount%100*percent/100
}

// percentOf 计算 floor(part * 100 / whole)，不设上限
func percentOf(part, whole int64) (int64, error) {
	if whole <= 0 || part < 0 {
		return 0, ErrInvalidInput
	}
	hi, lo := bits.Mul64(uint64(part), 100)
	if hi >= uint64(whole) {
		return 0, ErrOverflow
	}
	q, _ := bits.Div64(hi, lo, uint64(whole))
	if q > math.MaxInt64 {
		return 0, ErrOverflow
	}
	return int64(q), nil
}
