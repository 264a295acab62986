package service

import (
	"fmt"
	"sync"

	"vetline/internal/models"
)

// ChannelManager maps between Green API instances and clinic tenants. The
// webhook receiver uses the instance id on the payload to find the owning
// clinic; the API surface goes the other way.
type ChannelManager struct {
	byInstance     map[string]string // instanceID -> clinicID
	byClinic       map[string]models.ChannelConfig
	orderedClinics []string
	mu             sync.RWMutex
}

func NewChannelManager(channels []models.ChannelConfig) (*ChannelManager, error) {
	cm := &ChannelManager{
		byInstance:     make(map[string]string),
		byClinic:       make(map[string]models.ChannelConfig),
		orderedClinics: make([]string, 0, len(channels)),
	}

	for _, channel := range channels {
		if channel.ClinicID == "" {
			return nil, fmt.Errorf("empty clinic id in channel configuration")
		}
		if channel.InstanceID == "" {
			return nil, fmt.Errorf("empty instance id for clinic %s", channel.ClinicID)
		}
		if _, exists := cm.byClinic[channel.ClinicID]; exists {
			return nil, fmt.Errorf("duplicate clinic id: %s", channel.ClinicID)
		}
		if _, exists := cm.byInstance[channel.InstanceID]; exists {
			return nil, fmt.Errorf("duplicate instance id: %s", channel.InstanceID)
		}

		cm.byInstance[channel.InstanceID] = channel.ClinicID
		cm.byClinic[channel.ClinicID] = channel
		cm.orderedClinics = append(cm.orderedClinics, channel.ClinicID)
	}

	if len(cm.byClinic) == 0 {
		return nil, fmt.Errorf("no channels configured")
	}

	return cm, nil
}

// ClinicForInstance resolves the clinic owning a Green API instance.
func (cm *ChannelManager) ClinicForInstance(instanceID string) (string, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	clinicID, ok := cm.byInstance[instanceID]
	if !ok {
		return "", fmt.Errorf("no clinic configured for instance: %s", instanceID)
	}
	return clinicID, nil
}

// ChannelForClinic returns the full channel binding for a clinic.
func (cm *ChannelManager) ChannelForClinic(clinicID string) (models.ChannelConfig, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	channel, ok := cm.byClinic[clinicID]
	if !ok {
		return models.ChannelConfig{}, fmt.Errorf("no channel configured for clinic: %s", clinicID)
	}
	return channel, nil
}

// HasClinic reports whether a clinic is configured.
func (cm *ChannelManager) HasClinic(clinicID string) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	_, ok := cm.byClinic[clinicID]
	return ok
}

// ClinicIDs returns clinic ids in configuration order.
func (cm *ChannelManager) ClinicIDs() []string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	out := make([]string, len(cm.orderedClinics))
	copy(out, cm.orderedClinics)
	return out
}

// DefaultClinic returns the first configured clinic. Single-tenant
// deployments omit the clinic parameter on API calls and get this one.
func (cm *ChannelManager) DefaultClinic() string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if len(cm.orderedClinics) == 0 {
		return ""
	}
	return cm.orderedClinics[0]
}
