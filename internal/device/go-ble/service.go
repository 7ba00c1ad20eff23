package goble

import (
	"github.com/go-ble/ble"
	"github.com/google/uuid"
)

// BLEService wraps a discovered ble.Service
type BLEService struct {
	svc  *ble.Service
	uuid uuid.UUID
}

func newService(svc *ble.Service) *BLEService {
	return &BLEService{svc: svc, uuid: toUUID(svc.UUID)}
}

func (s *BLEService) UUID() uuid.UUID {
	return s.uuid
}
