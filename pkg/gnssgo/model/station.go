package model

// StationAttributes describes the reference station the bridge is running
// as: a 12-bit station ID, an Earth-Centered-Earth-Fixed antenna reference
// point, and an optional human-readable antenna descriptor.
type StationAttributes struct {
	StationID int
	X, Y, Z   float64 // ARP, meters, ECEF
	Antenna   string
}

// ResolveARP returns the station's antenna reference point, substituting
// the receiver's self-reported position when the configured ARP is the
// origin.
func (s *StationAttributes) ResolveARP(receiverX, receiverY, receiverZ float64, receiverOK bool) (x, y, z float64) {
	if s.X == 0 && s.Y == 0 && s.Z == 0 && receiverOK {
		return receiverX, receiverY, receiverZ
	}
	return s.X, s.Y, s.Z
}
