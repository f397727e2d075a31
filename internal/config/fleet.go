package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FleetVehicle describes one vehicle to register and connect at boot.
type FleetVehicle struct {
	Name       string `yaml:"name"`
	UIN        string `yaml:"uin"`
	OwnerID    int64  `yaml:"owner_id"`
	Connection string `yaml:"connection"` // protocol:host:port
	PeerHost   string `yaml:"peer_host"`  // optional command-destination override
	PeerPort   int    `yaml:"peer_port"`
}

// Fleet is the parsed fleet file.
type Fleet struct {
	Vehicles []FleetVehicle `yaml:"vehicles"`
}

// LoadFleet reads a fleet YAML file.
func LoadFleet(path string) (*Fleet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fleet file: %w", err)
	}

	var fleet Fleet
	if err := yaml.Unmarshal(data, &fleet); err != nil {
		return nil, fmt.Errorf("failed to parse fleet file: %w", err)
	}

	for i, v := range fleet.Vehicles {
		if v.UIN == "" {
			return nil, fmt.Errorf("fleet vehicle %d: uin cannot be empty", i)
		}
		if v.Connection == "" {
			return nil, fmt.Errorf("fleet vehicle %d (%s): connection cannot be empty", i, v.UIN)
		}
		if v.OwnerID <= 0 {
			return nil, fmt.Errorf("fleet vehicle %d (%s): owner_id must be set", i, v.UIN)
		}
	}

	return &fleet, nil
}
