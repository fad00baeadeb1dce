package layout

import "fmt"

// LedID addresses one controllable light: the device type, the position of
// the device within that type's list, and the LED index on the device.
type LedID struct {
	Type   uint8
	Device uint8
	Led    int16
}

func NewLedID(deviceType, device uint8, led int16) LedID {
	return LedID{Type: deviceType, Device: device, Led: led}
}

// Key returns the lookup key of the device owning the LED.
func (id LedID) Key() DeviceKey {
	return DeviceKey{Type: id.Type, Index: id.Device}
}

func (id LedID) String() string {
	return fmt.Sprintf("%d:%d:%d", id.Type, id.Device, id.Led)
}

// DeviceKey identifies one device instance in the registry index.
type DeviceKey struct {
	Type  uint8
	Index uint8
}

// Less orders keys by type, then by position.
func (k DeviceKey) Less(o DeviceKey) bool {
	if k.Type != o.Type {
		return k.Type < o.Type
	}
	return k.Index < o.Index
}

func (k DeviceKey) String() string {
	return fmt.Sprintf("%d:%d", k.Type, k.Index)
}
