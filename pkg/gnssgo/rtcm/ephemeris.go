package rtcm

import (
	"fmt"
	"math"

	"github.com/trimtide/gnssbridge/pkg/gnssgo/bitio"
	"github.com/trimtide/gnssbridge/pkg/gnssgo/model"
	"github.com/trimtide/gnssbridge/pkg/gnssgo/navframe"
)

// WGS-84 / ICD-GPS-200 constants used by the orbital model.
const (
	gmWGS84     = 3.986005e14    // mu, m^3/s^2 (open question 3: confirmed WGS-84 value)
	earthRotRad = 7.2921151467e-5 // omega_e, rad/s
	relF        = -4.442807633e-10
	kepEps      = 1e-12 // fixed-point Kepler iteration convergence tolerance, rad
	kepMaxIter  = 20
)

// absWordBit converts a 1-based absolute subframe bit position to the
// (word, local-bit) pair navframe.Frame's field accessors expect.
func absWordBit(pos int) (word, local int) {
	word = (pos-1)/30 + 1
	local = (pos-1)%30 + 1
	return
}

func getAbsField(f *navframe.Frame, first, width int) (uint32, error) {
	word, local := absWordBit(first)
	return f.GetField(word, local, local+width-1)
}

func getAbsSigned(f *navframe.Frame, first, width int) (int32, error) {
	word, local := absWordBit(first)
	return f.GetSigned(word, local, local+width-1)
}

// getSplit32 concatenates an 8-bit high piece at hiFirst with a 24-bit low
// piece at loFirst, as used by the ephemeris fields that straddle two
// navigation words (M_0, e, sqrt_A, Omega_0, i_0, omega).
func getSplit32(f *navframe.Frame, hiFirst, loFirst int) (uint32, error) {
	hi, err := getAbsField(f, hiFirst, 8)
	if err != nil {
		return 0, err
	}
	lo, err := getAbsField(f, loFirst, 24)
	if err != nil {
		return 0, err
	}
	return (hi << 24) | lo, nil
}

func signExtend32(u uint32, width int) int64 {
	signBit := uint32(1) << uint(width-1)
	if u&signBit != 0 {
		return int64(u) - int64(1)<<uint(width)
	}
	return int64(u)
}

// DecodeSubframes validates the iode consistency across subframes 1, 2 and
// 3 and populates eph in place. Subframes 1, 2 and
// 3's issue-of-data tags must agree; on mismatch the existing eph is left
// unchanged and an error is returned.
//
// The subframe-1 IODC low byte is read from word 8 bits 1-8 (absolute
// subframe bits 211-218), matching ICD-GPS-200's real word layout: subframe
// 1 word 3 carries only the 2 IODC MSBs (bits 83-84, read below), and the 8
// IODC LSBs are carried in word 8, ahead of t_oc.
func DecodeSubframes(sf1, sf2, sf3 *navframe.Frame, eph *model.EphemerisXmit) error {
	iodeSf2, err := getAbsField(sf2, 61, 8)
	if err != nil {
		return fmt.Errorf("rtcm: decode iode from subframe 2: %w", err)
	}
	iodeSf3, err := getAbsField(sf3, 271, 8)
	if err != nil {
		return fmt.Errorf("rtcm: decode iode from subframe 3: %w", err)
	}
	iodcLo, err := getAbsField(sf1, 211, 8)
	if err != nil {
		return fmt.Errorf("rtcm: decode iodc low byte from subframe 1: %w", err)
	}
	if iodeSf2 != iodeSf3 || iodeSf2 != iodcLo {
		return fmt.Errorf("rtcm: iode mismatch across subframes (sf2=%d sf3=%d iodc_lo=%d)", iodeSf2, iodeSf3, iodcLo)
	}

	wn, _ := getAbsField(sf1, 61, 10)
	svAcc, _ := getAbsField(sf1, 73, 4)
	health, _ := getAbsField(sf1, 77, 6)
	iodcHi, _ := getAbsField(sf1, 83, 2)
	tgdRaw, _ := getAbsSigned(sf1, 197, 8)
	tocRaw, _ := getAbsField(sf1, 219, 16)
	af2Raw, _ := getAbsSigned(sf1, 241, 8)
	af1Raw, _ := getAbsSigned(sf1, 249, 16)
	af0Raw, _ := getAbsSigned(sf1, 271, 22)

	crsRaw, _ := getAbsSigned(sf2, 69, 16)
	deltaNRaw, _ := getAbsSigned(sf2, 91, 16)
	m0u, _ := getSplit32(sf2, 107, 121)
	cucRaw, _ := getAbsSigned(sf2, 151, 16)
	eu, _ := getSplit32(sf2, 167, 181)
	cusRaw, _ := getAbsSigned(sf2, 211, 16)
	sqrtAU, _ := getSplit32(sf2, 227, 241)
	toeRaw, _ := getAbsField(sf2, 271, 16)

	cicRaw, _ := getAbsSigned(sf3, 61, 16)
	omega0u, _ := getSplit32(sf3, 77, 91)
	cisRaw, _ := getAbsSigned(sf3, 121, 16)
	i0u, _ := getSplit32(sf3, 137, 151)
	crcRaw, _ := getAbsSigned(sf3, 181, 16)
	omegaU, _ := getSplit32(sf3, 197, 211)
	omegaDotRaw, _ := getAbsSigned(sf3, 241, 24)
	idotRaw, _ := getAbsSigned(sf3, 279, 14)

	iodc := (int(iodcHi) << 8) | int(iodcLo)

	week := int64(wn)
	toc := model.Time((week*model.SecondsPerWeek + int64(tocRaw)*16) * int64(1e9))
	toe := model.Time((week*model.SecondsPerWeek + int64(toeRaw)*16) * int64(1e9))

	eph.Week = int(wn)
	eph.Iode = int(iodeSf2)
	eph.Iodc = iodc
	eph.Health = int(health)
	eph.SvAccuracy = float64(svAcc)
	eph.Toc = toc
	eph.Af2 = float64(af2Raw) * math.Pow(2, -55)
	eph.Af1 = float64(af1Raw) * math.Pow(2, -43)
	eph.Af0 = float64(af0Raw) * math.Pow(2, -31)
	eph.Tgd = float64(tgdRaw) * math.Pow(2, -31)

	eph.Toe = toe
	eph.Crs = float64(crsRaw) * math.Pow(2, -5)
	eph.DeltaN = float64(deltaNRaw) * math.Pow(2, -43) * math.Pi
	eph.M0 = float64(signExtend32(m0u, 32)) * math.Pow(2, -31) * math.Pi
	eph.Cuc = float64(cucRaw) * math.Pow(2, -29)
	eph.Ecc = float64(eu) * math.Pow(2, -33)
	eph.Cus = float64(cusRaw) * math.Pow(2, -29)
	eph.SqrtA = float64(sqrtAU) * math.Pow(2, -19)

	eph.Cic = float64(cicRaw) * math.Pow(2, -29)
	eph.Omega0 = float64(signExtend32(omega0u, 32)) * math.Pow(2, -31) * math.Pi
	eph.Cis = float64(cisRaw) * math.Pow(2, -29)
	eph.I0 = float64(signExtend32(i0u, 32)) * math.Pow(2, -31) * math.Pi
	eph.Crc = float64(crcRaw) * math.Pow(2, -5)
	eph.Omega = float64(signExtend32(omegaU, 32)) * math.Pow(2, -31) * math.Pi
	eph.OmegaDot = float64(omegaDotRaw) * math.Pow(2, -43) * math.Pi
	eph.IDOT = float64(idotRaw) * math.Pow(2, -43) * math.Pi

	const twoHoursNs = int64(2 * 3600 * 1e9)
	eph.MinTime = eph.Toe - model.Time(twoHoursNs)
	eph.MaxTime = eph.Toe + model.Time(twoHoursNs)

	return nil
}

// SatPos computes the ECEF satellite position and clock correction at
// xmitTime per ICD-GPS-200's orbital model.
func SatPos(eph *model.EphemerisXmit, xmitTime model.Time) (x, y, z, clockBias float64, err error) {
	if eph.Iode < 0 {
		return 0, 0, 0, 0, fmt.Errorf("rtcm: ephemeris uninitialized")
	}

	a := eph.SqrtA * eph.SqrtA
	n0 := math.Sqrt(gmWGS84 / (a * a * a))

	t := xmitTime.Sub(eph.Toe).Seconds()
	if t > 302400 {
		t -= 604800
	} else if t < -302400 {
		t += 604800
	}

	n := n0 + eph.DeltaN
	mAnom := eph.M0 + n*t

	e := eph.Ecc
	ecc := mAnom
	for i := 0; i < kepMaxIter; i++ {
		next := mAnom + e*math.Sin(ecc)
		if math.Abs(next-ecc) < kepEps {
			ecc = next
			break
		}
		ecc = next
	}

	sinE, cosE := math.Sin(ecc), math.Cos(ecc)
	nu := math.Atan2(math.Sqrt(1-e*e)*sinE, cosE-e)

	phi := nu + eph.Omega
	sin2phi, cos2phi := math.Sin(2*phi), math.Cos(2*phi)
	du := eph.Cuc*cos2phi + eph.Cus*sin2phi
	dr := eph.Crc*cos2phi + eph.Crs*sin2phi
	di := eph.Cic*cos2phi + eph.Cis*sin2phi

	u := phi + du
	r := a*(1-e*cosE) + dr
	incl := eph.I0 + eph.IDOT*t + di

	xp := r * math.Cos(u)
	yp := r * math.Sin(u)

	toeTow := eph.Toe.Tow()
	omega := eph.Omega0 - earthRotRad*toeTow + (eph.OmegaDot-earthRotRad)*t

	sinOmega, cosOmega := math.Sin(omega), math.Cos(omega)
	sinI, cosI := math.Sin(incl), math.Cos(incl)

	x = xp*cosOmega - yp*cosI*sinOmega
	y = xp*sinOmega + yp*cosI*cosOmega
	z = yp * sinI

	dtClock := xmitTime.Sub(eph.Toc).Seconds()
	clockBias = eph.Af0 + eph.Af1*dtClock + eph.Af2*dtClock*dtClock +
		relF*e*eph.SqrtA*sinE - eph.Tgd

	return x, y, z, clockBias, nil
}

// EphemerisMessageType identifies the fixed-layout ephemeris record on the
// wire, the same way 1002 and 1005 self-identify: RTCM's own GPS
// ephemerides message number.
const EphemerisMessageType = 1019

// EncodeEphemeris packs eph into a fixed 22-word (24 bits each) RTCM-style
// record using the same bit widths and scale factors as the navigation
// subframe, so DecodeEphemeris(EncodeEphemeris(e)) == e within one quantum
// per field so the two sides stay exact.
func EncodeEphemeris(eph *model.EphemerisXmit) ([]byte, error) {
	buf := make([]byte, 22*3)
	c := bitio.NewWriter(buf)

	putU := func(v uint64, w int) { c.PutUint(v, w) }
	putS := func(v int64, w int) { c.PutInt(v, w) }

	putU(EphemerisMessageType, 12)
	putU(uint64(eph.Week), 10)
	putU(uint64(eph.Iode), 8)
	putU(uint64(eph.Iodc), 10)
	putU(uint64(eph.Health), 6)
	putU(uint64(eph.SvAccuracy), 4)
	putS(int64(math.Round(eph.Tgd/math.Pow(2, -31))), 8)
	putU(uint64(math.Round(eph.Toc.Tow()/16)), 16)
	putS(int64(math.Round(eph.Af2/math.Pow(2, -55))), 8)
	putS(int64(math.Round(eph.Af1/math.Pow(2, -43))), 16)
	putS(int64(math.Round(eph.Af0/math.Pow(2, -31))), 22)

	putS(int64(math.Round(eph.Crs/math.Pow(2, -5))), 16)
	putS(int64(math.Round(eph.DeltaN/(math.Pow(2, -43)*math.Pi))), 16)
	putS(int64(math.Round(eph.M0/(math.Pow(2, -31)*math.Pi))), 32)
	putS(int64(math.Round(eph.Cuc/math.Pow(2, -29))), 16)
	putU(uint64(math.Round(eph.Ecc/math.Pow(2, -33))), 32)
	putS(int64(math.Round(eph.Cus/math.Pow(2, -29))), 16)
	putU(uint64(math.Round(eph.SqrtA/math.Pow(2, -19))), 32)
	putU(uint64(math.Round(eph.Toe.Tow()/16)), 16)

	putS(int64(math.Round(eph.Cic/math.Pow(2, -29))), 16)
	putS(int64(math.Round(eph.Omega0/(math.Pow(2, -31)*math.Pi))), 32)
	putS(int64(math.Round(eph.Cis/math.Pow(2, -29))), 16)
	putS(int64(math.Round(eph.I0/(math.Pow(2, -31)*math.Pi))), 32)
	putS(int64(math.Round(eph.Crc/math.Pow(2, -5))), 16)
	putS(int64(math.Round(eph.Omega/(math.Pow(2, -31)*math.Pi))), 32)
	putS(int64(math.Round(eph.OmegaDot/(math.Pow(2, -43)*math.Pi))), 24)
	putS(int64(math.Round(eph.IDOT/(math.Pow(2, -43)*math.Pi))), 14)

	return buf, nil
}

// DecodeEphemeris is the inverse of EncodeEphemeris.
func DecodeEphemeris(buf []byte) (*model.EphemerisXmit, error) {
	c := bitio.NewReader(buf)
	eph := model.NewEphemerisXmit()

	getU := func(w int) uint64 { v, _ := c.GetUint(w); return v }
	getS := func(w int) int64 { v, _ := c.GetInt(w); return v }

	if msgType := getU(12); msgType != EphemerisMessageType {
		return nil, fmt.Errorf("rtcm: expected message type %d, got %d", EphemerisMessageType, msgType)
	}

	week := int64(getU(10))
	eph.Week = int(week)
	eph.Iode = int(getU(8))
	eph.Iodc = int(getU(10))
	eph.Health = int(getU(6))
	eph.SvAccuracy = float64(getU(4))
	eph.Tgd = float64(getS(8)) * math.Pow(2, -31)
	tocTow := float64(getU(16)) * 16
	af2 := float64(getS(8)) * math.Pow(2, -55)
	af1 := float64(getS(16)) * math.Pow(2, -43)
	af0 := float64(getS(22)) * math.Pow(2, -31)
	eph.Af2, eph.Af1, eph.Af0 = af2, af1, af0

	eph.Crs = float64(getS(16)) * math.Pow(2, -5)
	eph.DeltaN = float64(getS(16)) * math.Pow(2, -43) * math.Pi
	eph.M0 = float64(getS(32)) * math.Pow(2, -31) * math.Pi
	eph.Cuc = float64(getS(16)) * math.Pow(2, -29)
	eph.Ecc = float64(getU(32)) * math.Pow(2, -33)
	eph.Cus = float64(getS(16)) * math.Pow(2, -29)
	eph.SqrtA = float64(getU(32)) * math.Pow(2, -19)
	toeTow := float64(getU(16)) * 16

	eph.Cic = float64(getS(16)) * math.Pow(2, -29)
	eph.Omega0 = float64(getS(32)) * math.Pow(2, -31) * math.Pi
	eph.Cis = float64(getS(16)) * math.Pow(2, -29)
	eph.I0 = float64(getS(32)) * math.Pow(2, -31) * math.Pi
	eph.Crc = float64(getS(16)) * math.Pow(2, -5)
	eph.Omega = float64(getS(32)) * math.Pow(2, -31) * math.Pi
	eph.OmegaDot = float64(getS(24)) * math.Pow(2, -43) * math.Pi
	eph.IDOT = float64(getS(14)) * math.Pow(2, -43) * math.Pi

	eph.Toc = model.Time((week*model.SecondsPerWeek + int64(tocTow)) * int64(1e9))
	eph.Toe = model.Time((week*model.SecondsPerWeek + int64(toeTow)) * int64(1e9))
	const twoHoursNs = int64(2 * 3600 * 1e9)
	eph.MinTime = eph.Toe - model.Time(twoHoursNs)
	eph.MaxTime = eph.Toe + model.Time(twoHoursNs)

	return eph, nil
}
