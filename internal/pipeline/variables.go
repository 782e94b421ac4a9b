package pipeline

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

type Variable struct {
	Name  string
	Value string
}

// Variables keeps pipeline variables in the order they were set.
type Variables []Variable

func (v *Variables) Set(name, value string) {
	for i := range *v {
		if (*v)[i].Name == name {
			(*v)[i].Value = value
			return
		}
	}
	*v = append(*v, Variable{Name: name, Value: value})
}

// Emit writes each variable as a readable line followed by the
// task.setvariable logging command understood by the CI agent.
func (v Variables) Emit(w io.Writer) error {
	for _, variable := range v {
		if _, err := fmt.Fprintf(w, "%s -> %s\n", variable.Name, variable.Value); err != nil {
			return errors.Wrap(err, "writing pipeline variable")
		}
		if _, err := fmt.Fprintf(w, "##vso[task.setvariable variable=%s]%s\n", variable.Name, variable.Value); err != nil {
			return errors.Wrap(err, "writing pipeline variable")
		}
	}
	return nil
}
