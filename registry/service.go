package registry

import "github.com/kroksys/obatch/batch"

// Service represents a processor with its methods and is registered with the
// name of the entity set it serves.
type Service struct {
	Name    string
	methods map[batch.Method]*Method
}

// Reports whether the service serves m.
func (s *Service) Allows(m batch.Method) bool {
	_, ok := s.methods[m]
	return ok
}
