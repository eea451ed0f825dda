package model

// Container is one managed container of the compose project.
type Container struct {
	Key   string // short id derived from the name, e.g. "db"
	Name  string // full engine name, e.g. "myapp_db_1"
	Title string // display label
}

// ContainerSet maps Container.Key to Container and keeps discovery order.
type ContainerSet struct {
	order []string
	byKey map[string]Container
}

// NewContainerSet creates an empty set
func NewContainerSet() *ContainerSet {
	return &ContainerSet{byKey: make(map[string]Container)}
}

// Add appends c. It reports false if the key is already taken.
func (s *ContainerSet) Add(c Container) bool {
	if _, ok := s.byKey[c.Key]; ok {
		return false
	}
	s.byKey[c.Key] = c
	s.order = append(s.order, c.Key)
	return true
}

// Get looks up a container by key
func (s *ContainerSet) Get(key string) (Container, bool) {
	c, ok := s.byKey[key]
	return c, ok
}

// Has reports whether key is part of the set
func (s *ContainerSet) Has(key string) bool {
	_, ok := s.byKey[key]
	return ok
}

// Keys returns the keys in discovery order
func (s *ContainerSet) Keys() []string {
	keys := make([]string, len(s.order))
	copy(keys, s.order)
	return keys
}

// All returns the containers in discovery order
func (s *ContainerSet) All() []Container {
	result := make([]Container, 0, len(s.order))
	for _, k := range s.order {
		result = append(result, s.byKey[k])
	}
	return result
}

// Index returns the position of key, or -1
func (s *ContainerSet) Index(key string) int {
	for i, k := range s.order {
		if k == key {
			return i
		}
	}
	return -1
}

// Len returns the number of containers
func (s *ContainerSet) Len() int {
	return len(s.order)
}
