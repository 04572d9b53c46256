package main

import (
	"bufio"
	_c "context"
	"fmt"
	"io"
	"mixer/lib/component/operator/mixing"
	"mixer/mixer"
	"os"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/parser"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func init() {
	tengoCommand := &cobra.Command{
		Use:   "tengo",
		Short: "run REPL",
		Long:  `run tengo REPL for test`,
		Run: func(cmd *cobra.Command, args []string) {
			modules := stdlib.GetModuleMap(stdlib.AllModuleNames()...)
			RunREPL(modules, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	var scriptFile, keyPath, originPath string
	keyCommand := &cobra.Command{
		Use:   "key",
		Short: "print the key and origin of events",
		Long:  `read one JSON event per line from stdin and print the key and origin the mixing operator would give it`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var script string
			if scriptFile != "" {
				content, err := os.ReadFile(scriptFile)
				if err != nil {
					return err
				}
				script = string(content)
			}
			keyer, err := mixing.NewKeyer(script, keyPath, originPath)
			if err != nil {
				return err
			}
			return PrintKeys(keyer, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	keyCommand.Flags().StringVar(&scriptFile, "script", "", "tengo key script file")
	keyCommand.Flags().StringVar(&keyPath, "key", mixing.KeyProperty.Default().(string), "dotted path of the key")
	keyCommand.Flags().StringVar(&originPath, "origin", mixing.OriginProperty.Default().(string), "dotted path of the origin")
	tengoCommand.AddCommand(keyCommand)
	Command.AddCommand(tengoCommand)
}

//PrintKeys writes "key<TAB>origin" for every event read from in
func PrintKeys(keyer mixing.Keyer, in io.Reader, out io.Writer) error {
	lines := bufio.NewScanner(in)
	for n := 1; lines.Scan(); n++ {
		event := &mixer.Event{}
		if err := json.Unmarshal(lines.Bytes(), event); err != nil {
			return errors.WithMessagef(err, "line %d", n)
		}
		key, origin, err := keyer.Keys(_c.Background(), event)
		if err != nil {
			return errors.WithMessagef(err, "line %d", n)
		}
		if _, err = fmt.Fprintf(out, "%s\t%s\n", key, origin); err != nil {
			return err
		}
	}
	return lines.Err()
}

const (
	replPrompt = ">> "
)

// RunREPL starts REPL.
func RunREPL(modules *tengo.ModuleMap, in io.Reader, out io.Writer) {
	stdin := bufio.NewScanner(in)
	fileSet := parser.NewFileSet()
	globals := make([]tengo.Object, tengo.GlobalsSize)
	symbolTable := tengo.NewSymbolTable()
	for idx, fn := range tengo.GetAllBuiltinFunctions() {
		symbolTable.DefineBuiltin(idx, fn.Name)
	}

	// embed println function
	symbol := symbolTable.Define("__repl_println__")
	globals[symbol.Index] = &tengo.UserFunction{
		Name: "println",
		Value: func(args ...tengo.Object) (ret tengo.Object, err error) {
			var printArgs []interface{}
			for _, arg := range args {
				if _, isUndefined := arg.(*tengo.Undefined); isUndefined {
					printArgs = append(printArgs, "<undefined>")
				} else {
					s, _ := tengo.ToString(arg)
					printArgs = append(printArgs, s)
				}
			}
			printArgs = append(printArgs, "\n")
			_, _ = fmt.Fprint(out, printArgs...)
			return
		},
	}

	var constants []tengo.Object
	for {
		_, _ = fmt.Fprint(out, replPrompt)
		scanned := stdin.Scan()
		if !scanned {
			return
		}

		line := stdin.Text()
		srcFile := fileSet.AddFile("repl", -1, len(line))
		p := parser.NewParser(srcFile, []byte(line), nil)
		file, err := p.ParseFile()
		if err != nil {
			_, _ = fmt.Fprintln(out, err.Error())
			continue
		}

		file = addPrints(file)
		c := tengo.NewCompiler(srcFile, symbolTable, constants, modules, nil)
		if err := c.Compile(file); err != nil {
			_, _ = fmt.Fprintln(out, err.Error())
			continue
		}

		bytecode := c.Bytecode()
		machine := tengo.NewVM(bytecode, globals, -1)
		if err := machine.Run(); err != nil {
			_, _ = fmt.Fprintln(out, err.Error())
			continue
		}
		constants = bytecode.Constants
	}
}

func addPrints(file *parser.File) *parser.File {
	var stmts []parser.Stmt
	for _, s := range file.Stmts {
		switch s := s.(type) {
		case *parser.ExprStmt:
			stmts = append(stmts, &parser.ExprStmt{
				Expr: &parser.CallExpr{
					Func: &parser.Ident{Name: "__repl_println__"},
					Args: []parser.Expr{s.Expr},
				},
			})
		case *parser.AssignStmt:
			stmts = append(stmts, s)

			stmts = append(stmts, &parser.ExprStmt{
				Expr: &parser.CallExpr{
					Func: &parser.Ident{
						Name: "__repl_println__",
					},
					Args: s.LHS,
				},
			})
		default:
			stmts = append(stmts, s)
		}
	}
	return &parser.File{
		InputFile: file.InputFile,
		Stmts:     stmts,
	}
}
