package model

type Attr string

const (
	STR Attr = "STR"
	SPD Attr = "SPD"
	FS  Attr = "FS"
	LDR Attr = "LDR"
	DUR Attr = "DUR"
	RES Attr = "RES"
	WIL Attr = "WIL"
	OP  Attr = "OP"
	AM  Attr = "AM"
	SBY Attr = "SBY"
)

var AllAttrs = []Attr{STR, SPD, FS, LDR, DUR, RES, WIL, OP, AM, SBY}

const (
	AttrDefault = 5
	AttrMin     = 1
)

type Attributes struct {
	STR int `json:"STR"`
	SPD int `json:"SPD"`
	FS  int `json:"FS"`
	LDR int `json:"LDR"`
	DUR int `json:"DUR"`
	RES int `json:"RES"`
	WIL int `json:"WIL"`
	OP  int `json:"OP"`
	AM  int `json:"AM"`
	SBY int `json:"SBY"`
}

func DefaultAttributes() Attributes {
	return Attributes{
		STR: AttrDefault, SPD: AttrDefault, FS: AttrDefault, LDR: AttrDefault, DUR: AttrDefault,
		RES: AttrDefault, WIL: AttrDefault, OP: AttrDefault, AM: AttrDefault, SBY: AttrDefault,
	}
}

func (a *Attributes) ptr(k Attr) *int {
	switch k {
	case STR:
		return &a.STR
	case SPD:
		return &a.SPD
	case FS:
		return &a.FS
	case LDR:
		return &a.LDR
	case DUR:
		return &a.DUR
	case RES:
		return &a.RES
	case WIL:
		return &a.WIL
	case OP:
		return &a.OP
	case AM:
		return &a.AM
	case SBY:
		return &a.SBY
	}
	return nil
}

func (a Attributes) Get(k Attr) int {
	if p := a.ptr(k); p != nil {
		return *p
	}
	return 0
}

func (a *Attributes) Set(k Attr, v int) {
	if p := a.ptr(k); p != nil {
		*p = v
	}
}

// Add shifts an attribute by delta, flooring at AttrMin, and returns the delta actually applied.
func (a *Attributes) Add(k Attr, delta int) int {
	p := a.ptr(k)
	if p == nil {
		return 0
	}
	next := *p + delta
	if next < AttrMin {
		next = AttrMin
	}
	applied := next - *p
	*p = next
	return applied
}

// Normalize fills unset (zero) attributes with the default value.
func (a *Attributes) Normalize() {
	for _, k := range AllAttrs {
		if a.Get(k) <= 0 {
			a.Set(k, AttrDefault)
		}
	}
}
