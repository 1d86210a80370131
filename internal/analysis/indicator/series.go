package indicator

// Value 指标序列中的单个值。OK=false 表示"窗口未满，尚不可计算"，
// 与真实的 0 值严格区分，不用 NaN 哨兵。
type Value struct {
	F  float64
	OK bool
}

var Undefined = Value{}

func Defined(f float64) Value {
	return Value{F: f, OK: true}
}

// Or 返回已定义的值，未定义时返回 def。
func (v Value) Or(def float64) float64 {
	if v.OK {
		return v.F
	}
	return def
}

// Series 与输入 K 线按下标对齐的指标序列。
type Series []Value

// At 越界安全的取值。
func (s Series) At(i int) Value {
	if i < 0 || i >= len(s) {
		return Undefined
	}
	return s[i]
}

func (s Series) Last() Value {
	return s.At(len(s) - 1)
}
