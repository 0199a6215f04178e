package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RTSPConfig describes one configured network camera. The URL usually embeds
// credentials; Username/Password are kept separately for cameras that need
// them supplied out of band.
type RTSPConfig struct {
	URL      string `yaml:"url"`
	Name     string `yaml:"name"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// CameraFile is the on-disk camera configuration. Credentials live in a
// separate file so the main config can be committed without secrets.
type CameraFile struct {
	RTSP RTSPConfig `yaml:"rtsp"`
}

// LoadCameraFile reads the camera config and merges the RTSP URL from the
// credentials file when the main config leaves it empty. A missing main
// config is not an error; it just means no network cameras are configured.
func LoadCameraFile(configPath, credentialsPath string) (*CameraFile, error) {
	cf := &CameraFile{}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cf, nil
		}
		return nil, fmt.Errorf("failed to read camera config %s: %w", configPath, err)
	}

	if err := yaml.Unmarshal(data, cf); err != nil {
		return nil, fmt.Errorf("failed to parse camera config %s: %w", configPath, err)
	}

	if cf.RTSP.URL == "" && credentialsPath != "" {
		creds, err := os.ReadFile(credentialsPath)
		if err == nil {
			var cc CameraFile
			if err := yaml.Unmarshal(creds, &cc); err != nil {
				return nil, fmt.Errorf("failed to parse credentials %s: %w", credentialsPath, err)
			}
			if cc.RTSP.URL != "" {
				cf.RTSP.URL = cc.RTSP.URL
				if cf.RTSP.Username == "" {
					cf.RTSP.Username = cc.RTSP.Username
				}
				if cf.RTSP.Password == "" {
					cf.RTSP.Password = cc.RTSP.Password
				}
			}
		}
	}

	return cf, nil
}
