package admission

// AnomalyDetector tracks the set of device and network identifiers each
// identity has booked with. Device ids and IP addresses share one set,
// undistinguished by type.
//
// Not safe for concurrent use on its own; the engine's critical section
// serializes all access.
type AnomalyDetector struct {
	threshold int
	seen      map[string]map[string]struct{}
}

// NewAnomalyDetector builds a detector with the given fan-out threshold.
func NewAnomalyDetector(threshold int) *AnomalyDetector {
	return &AnomalyDetector{
		threshold: threshold,
		seen:      make(map[string]map[string]struct{}),
	}
}

// IsSuspicious applies two independent rules, either of which flags the
// attempt:
//
//  1. Fan-out: the identity's recorded set already holds more than the
//     threshold of distinct identifiers. The check runs before the new
//     values are recorded, so an identity is flagged on the attempt after
//     the one that crossed the threshold.
//  2. Collision: the presented IP is already recorded under a different
//     identity.
//
// The collision rule scans every other identity's set, O(identities) per
// call. Fine at this scale; a reverse ip->identity index would make it O(1)
// if identity counts grow.
func (d *AnomalyDetector) IsSuspicious(identity, deviceID, ip string) bool {
	if len(d.seen[identity]) > d.threshold {
		return true
	}
	for other, ids := range d.seen {
		if other == identity {
			continue
		}
		if _, found := ids[ip]; found {
			return true
		}
	}
	return false
}

// Record adds both the device id and the IP to the identity's set. Called
// only on a fully successful booking.
func (d *AnomalyDetector) Record(identity, deviceID, ip string) {
	ids, ok := d.seen[identity]
	if !ok {
		ids = make(map[string]struct{})
		d.seen[identity] = ids
	}
	ids[deviceID] = struct{}{}
	ids[ip] = struct{}{}
}

// DistinctIdentifiers reports the size of the identity's recorded set.
func (d *AnomalyDetector) DistinctIdentifiers(identity string) int {
	return len(d.seen[identity])
}
