package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Point struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

type Size struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type Rect struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	W int `yaml:"w"`
	H int `yaml:"h"`
}

// Led names one light and the device-local region it samples. A zero rect
// means the LED has no region on the canvas.
type Led struct {
	ID   int16  `yaml:"id"`
	Name string `yaml:"name,omitempty"`
	Rect Rect   `yaml:"rect,omitempty"`
}

// Grid generates a matrix of LEDs; explicit leds entries override cells.
type Grid struct {
	Cols       int  `yaml:"cols"`
	Rows       int  `yaml:"rows"`
	CellW      int  `yaml:"cell_w"`
	CellH      int  `yaml:"cell_h"`
	Serpentine bool `yaml:"serpentine"`
}

type Driver struct {
	Kind    string `yaml:"kind"`               // "sim" | "console" | "spi" | ""
	Dev     string `yaml:"dev,omitempty"`      // SPI port name, e.g. /dev/spidev0.0
	FreqKHz int    `yaml:"freq_khz,omitempty"` // nrzled bit rate
}

type Device struct {
	Name     string `yaml:"name"`
	Location Point  `yaml:"location"`
	Size     Size   `yaml:"size"`
	Grid     *Grid  `yaml:"grid,omitempty"`
	Leds     []Led  `yaml:"leds,omitempty"`
	Driver   Driver `yaml:"driver,omitempty"`
}

type MQTT struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

// Settings is the persisted device layout. Devices are grouped by device
// type; the position inside each list is the device index.
type Settings struct {
	Brightness float64            `yaml:"brightness"`
	FPS        int                `yaml:"fps"`
	Addr       string             `yaml:"addr"`
	Canvas     Size               `yaml:"canvas"`
	MQTT       MQTT               `yaml:"mqtt"`
	Devices    map[uint8][]Device `yaml:"devices"`
}

// Default returns the values used for keys missing from the file.
func Default() *Settings {
	return &Settings{
		Brightness: 1.0,
		FPS:        30,
		Addr:       ":8080",
		MQTT: MQTT{
			Topic:    "arcaluminis/frame",
			ClientID: "arcaluminis",
		},
		Devices: map[uint8][]Device{},
	}
}

// DeviceCount is the number of device entries across all types.
func (s *Settings) DeviceCount() int {
	n := 0
	for _, l := range s.Devices {
		n += len(l)
	}
	return n
}

func Load(path string) (*Settings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

func Parse(b []byte) (*Settings, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}
	if c.Devices == nil {
		c.Devices = map[uint8][]Device{}
	}
	return c, nil
}

func Save(path string, c *Settings) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// FileLoader reads settings from a YAML file on every Load.
type FileLoader struct {
	Path string
}

func (l FileLoader) Load() (*Settings, error) { return Load(l.Path) }

// Static serves fixed settings, for tests and embedded layouts.
type Static struct {
	Settings *Settings
	Err      error
}

func (s Static) Load() (*Settings, error) { return s.Settings, s.Err }
