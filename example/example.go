package main

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/kroksys/obatch/registry"
)

// Employees keeps employees in memory.
type Employees struct {
	lock sync.Mutex
	data map[int]*Employee
	next int
}

func NewEmployees() *Employees {
	return &Employees{data: make(map[int]*Employee)}
}

func (e *Employees) Get(res registry.Resource) (interface{}, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if res.Key == "" {
		list := make([]*Employee, 0, len(e.data))
		for _, emp := range e.data {
			list = append(list, emp)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
		return list, nil
	}
	emp, err := e.find(res.Key)
	if err != nil {
		return nil, err
	}
	return emp, nil
}

func (e *Employees) Post(ctx context.Context, emp Employee) (*Employee, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if emp.Name == "" {
		return nil, registry.NewStatusError(http.StatusBadRequest, "name is required")
	}
	e.next++
	emp.ID = e.next
	e.data[emp.ID] = &emp
	return &emp, nil
}

func (e *Employees) Put(res registry.Resource, emp Employee) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	old, err := e.find(res.Key)
	if err != nil {
		return err
	}
	emp.ID = old.ID
	e.data[emp.ID] = &emp
	return nil
}

func (e *Employees) Patch(res registry.Resource, changes map[string]interface{}) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	emp, err := e.find(res.Key)
	if err != nil {
		return err
	}
	if name, ok := changes["name"].(string); ok {
		emp.Name = name
	}
	if age, ok := changes["age"].(float64); ok {
		emp.Age = int(age)
	}
	return nil
}

func (e *Employees) Delete(res registry.Resource) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	emp, err := e.find(res.Key)
	if err != nil {
		return err
	}
	delete(e.data, emp.ID)
	return nil
}

func (e *Employees) find(key string) (*Employee, error) {
	id, err := strconv.Atoi(key)
	if err != nil {
		return nil, registry.NewStatusError(http.StatusBadRequest, "employee key must be a number")
	}
	emp, ok := e.data[id]
	if !ok {
		return nil, registry.NewStatusError(http.StatusNotFound, "employee not found")
	}
	return emp, nil
}
