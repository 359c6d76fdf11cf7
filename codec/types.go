package codec

type Format uint8

const (
	FormatUnknown Format = iota
	FormatGIF
	FormatPCX
	FormatBMP
	FormatICO
	FormatIFF
	Format2GS
	FormatGROB
	FormatSCR
	FormatGOS
	FormatHGR
	FormatDHGR
	FormatFLI
	FormatCEL
	FormatPAL
	FormatPI1
	FormatNEO
	FormatCM5
	FormatPPH
	FormatMJH
	FormatSCX
	FormatINFO
)

func (f Format) String() string {
	switch f {
	case FormatGIF:
		return "Format(GIF)"
	case FormatPCX:
		return "Format(PCX)"
	case FormatBMP:
		return "Format(BMP)"
	case FormatICO:
		return "Format(ICO)"
	case FormatIFF:
		return "Format(IFF)"
	case Format2GS:
		return "Format(2GS)"
	case FormatGROB:
		return "Format(GROB)"
	case FormatSCR:
		return "Format(SCR)"
	case FormatGOS:
		return "Format(GOS)"
	case FormatHGR:
		return "Format(HGR)"
	case FormatDHGR:
		return "Format(DHGR)"
	case FormatFLI:
		return "Format(FLI)"
	case FormatCEL:
		return "Format(CEL)"
	case FormatPAL:
		return "Format(PAL)"
	case FormatPI1:
		return "Format(PI1)"
	case FormatNEO:
		return "Format(NEO)"
	case FormatCM5:
		return "Format(CM5)"
	case FormatPPH:
		return "Format(PPH)"
	case FormatMJH:
		return "Format(MJH)"
	case FormatSCX:
		return "Format(SCX)"
	case FormatINFO:
		return "Format(INFO)"
	}
	return "Format(UNKNOWN)"
}

// ColorCycle rotates the palette entries Low to High. Rate counts in
// 1/16384ths of a step per 60th of a second, the unit of an ILBM CRNG.
type ColorCycle struct {
	Low, High uint8
	Rate      uint16
	Active    bool
	Reverse   bool
}

const (
	cycleActive  = 1 << 0
	cycleReverse = 1 << 1
)

func (cy ColorCycle) flags() uint16 {
	var f uint16
	if cy.Active {
		f |= cycleActive
	}
	if cy.Reverse {
		f |= cycleReverse
	}
	return f
}

// parseCycle reads rate, flags, low and high from a six byte record.
func parseCycle(b []byte) ColorCycle {
	flags := uint16(b[2])<<8 | uint16(b[3])
	return ColorCycle{
		Low:     b[4],
		High:    b[5],
		Rate:    uint16(b[0])<<8 | uint16(b[1]),
		Active:  flags&cycleActive != 0,
		Reverse: flags&cycleReverse != 0,
	}
}

func (cy ColorCycle) record() []byte {
	f := cy.flags()
	return []byte{uint8(cy.Rate >> 8), uint8(cy.Rate), uint8(f >> 8), uint8(f), cy.Low, cy.High}
}

// Capabilities describes what a codec can do with its format.
type Capabilities uint8

const (
	CanLoad Capabilities = 1 << iota
	CanSave
	PaletteOnly
	FixedSize
	NeedsSidecar
	HasLayers
)

func (c Capabilities) Has(flags Capabilities) bool {
	return c&flags == flags
}

func (c Capabilities) String() string {
	names := []string{"load", "save", "palette", "fixed", "sidecar", "layers"}
	out := ""
	for i, n := range names {
		if c&(1<<uint(i)) == 0 {
			continue
		}
		if out != "" {
			out += ","
		}
		out += n
	}
	return out
}
