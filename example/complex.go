package main

import "strconv"

type Employee struct {
	ID      int      `json:"id"`
	Name    string   `json:"name"`
	Age     int      `json:"age"`
	Address *Address `json:"address,omitempty"`
	Skills  []Skill  `json:"skills,omitempty"`
}

func (e *Employee) EntityKey() string {
	return strconv.Itoa(e.ID)
}

type Address struct {
	Street string `json:"street"`
	City   string `json:"city"`
}

type Skill struct {
	Name  string `json:"name"`
	Level int    `json:"level"`
}
