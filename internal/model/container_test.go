package model

import "testing"

func TestContainerSetKeepsDiscoveryOrder(t *testing.T) {
	s := NewContainerSet()
	for _, k := range []string{"openresty", "db", "postgrest"} {
		if !s.Add(Container{Key: k, Name: "app_" + k + "_1"}) {
			t.Fatalf("Add(%q) rejected", k)
		}
	}

	keys := s.Keys()
	want := []string{"openresty", "db", "postgrest"}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("Keys() = %v, want %v", keys, want)
		}
	}
	if s.Index("db") != 1 {
		t.Errorf("Index(db) = %d, want 1", s.Index("db"))
	}
	if s.Index("rabbitmq") != -1 {
		t.Errorf("Index(rabbitmq) = %d, want -1", s.Index("rabbitmq"))
	}
}

func TestContainerSetRejectsDuplicateKey(t *testing.T) {
	s := NewContainerSet()
	s.Add(Container{Key: "db", Name: "a_db_1"})
	if s.Add(Container{Key: "db", Name: "a_db_2"}) {
		t.Fatal("duplicate key accepted")
	}
	c, _ := s.Get("db")
	if c.Name != "a_db_1" {
		t.Errorf("Get(db).Name = %q, first entry should win", c.Name)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d", s.Len())
	}
}

func TestKeysReturnsCopy(t *testing.T) {
	s := NewContainerSet()
	s.Add(Container{Key: "db"})
	keys := s.Keys()
	keys[0] = "mutated"
	if !s.Has("db") || s.Keys()[0] != "db" {
		t.Fatal("Keys() exposed internal slice")
	}
}
