package runtime

import (
	_c "context"
	"fmt"
	"mixer/lib/component"
	"mixer/lib/context"
	"mixer/lib/emit"
	"mixer/lib/log"
	"mixer/lib/properties"
	"mixer/lib/runtime/checkpoint"
	"mixer/lib/runtime/task"
	"mixer/mixer"
	"mixer/pkg/constant"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"gopkg.in/tomb.v2"
)

const (
	SourcePrefix   = "source"
	OperatorPrefix = "operator"
	SinkPrefix     = "sink"
)

var (
	propertiesDef = mixer.PropertiesDef{
		constant.RuntimeModeProperty,
		constant.RuntimeLogLevelProperty,
		constant.RuntimeStatusDirProperty,
		constant.RuntimeMetricsAddrProperty,
	}
)

type Runtime struct {
	ctx           mixer.Context
	logger        mixer.Logger
	runtime       mixer.Properties
	life          *tomb.Tomb
	checkpoints   *checkpoint.Store
	sourceTasks   map[mixer.Context]*task.SourceTask
	operatorTasks map[mixer.Context]*task.OperatorTask
	sinkTasks     map[mixer.Context]*task.SinkTask

	allEmitNext map[mixer.Context]mixer.EmitGenerator
	topology    map[mixer.Context][]mixer.Context
}

//componentNames returns the sorted names under prefix so startup is reproducible
func (e *Runtime) componentNames(prefix string) []string {
	names := e.ctx.Properties().PrefixKeys(prefix)
	sort.Strings(names)
	return names
}

func (e *Runtime) initSources() {
	sourceNames := e.componentNames(SourcePrefix)
	if len(sourceNames) == 0 {
		panic("source has to have at least one.")
	}
	for _, name := range sourceNames {
		sourceName := SourcePrefix + "." + name
		sourceCtx := e.ctx.Named(sourceName)
		if sourceCtx.Properties() == nil {
			panic(fmt.Sprintf("source %s properties can't be nil.", sourceName))
		}
		_type := sourceCtx.Properties().GetString(constant.TypeProperty)
		newSource := component.NewSourceFunc(_type)
		if newSource == nil {
			panic(fmt.Sprintf("source %s has unknown type %q.", sourceName, _type))
		}
		source := newSource()
		renderText, err := properties.InitAndRender(sourceCtx.Properties(), append(source.PropertiesDef(), constant.SelectorProperty))
		if err != nil {
			panic(errors.WithMessagef(err, "failed to init source %s properties", sourceName))
		}
		e.logger.Infof("init %s:\n%s", sourceName, renderText)
		e.sourceTasks[sourceCtx] = &task.SourceTask{
			Source:      source,
			Ctx:         sourceCtx,
			Name:        sourceName,
			Checkpoints: e.checkpoints,
		}
	}
}

func (e *Runtime) initOperators() {
	for _, name := range e.componentNames(OperatorPrefix) {
		operatorName := OperatorPrefix + "." + name
		operatorCtx := e.ctx.Named(operatorName)
		if operatorCtx.Properties() == nil {
			panic(fmt.Sprintf("operator %s properties can't be nil.", operatorName))
		}
		_type := operatorCtx.Properties().GetString(constant.TypeProperty)
		newOperator := component.NewOperatorFunc(_type)
		if newOperator == nil {
			panic(fmt.Sprintf("operator %s has unknown type %q.", operatorName, _type))
		}
		operator := newOperator()
		renderText, err := properties.InitAndRender(operatorCtx.Properties(), append(operator.PropertiesDef(), constant.SelectorProperty))
		if err != nil {
			panic(errors.WithMessagef(err, "failed to init operator %s properties", operatorName))
		}
		e.logger.Infof("init %s:\n%s", operatorName, renderText)
		operatorTask := &task.OperatorTask{
			Operator:    operator,
			Ctx:         operatorCtx,
			Checkpoints: e.checkpoints,
		}
		e.operatorTasks[operatorCtx] = operatorTask
		e.allEmitNext[operatorCtx] = operatorTask.GenerateEmit
	}
}

func (e *Runtime) initSinks() {
	sinkNames := e.componentNames(SinkPrefix)
	if len(sinkNames) == 0 {
		panic("sink has to have at least one.")
	}
	for _, name := range sinkNames {
		sinkName := SinkPrefix + "." + name
		sinkCtx := e.ctx.Named(sinkName)
		if sinkCtx.Properties() == nil {
			panic(fmt.Sprintf("sink %s properties can't be nil.", sinkName))
		}
		_type := sinkCtx.Properties().GetString(constant.TypeProperty)
		newSink := component.NewSinkFunc(_type)
		if newSink == nil {
			panic(fmt.Sprintf("sink %s has unknown type %q.", sinkName, _type))
		}
		sink := newSink()
		renderText, err := properties.InitAndRender(sinkCtx.Properties(), sink.PropertiesDef())
		if err != nil {
			panic(errors.WithMessagef(err, "failed to init sink %s properties", sinkName))
		}
		e.logger.Infof("init %s:\n%s", sinkName, renderText)
		sinkTask := &task.SinkTask{
			Sink:        sink,
			Ctx:         sinkCtx,
			Checkpoints: e.checkpoints,
		}
		e.sinkTasks[sinkCtx] = sinkTask
		e.allEmitNext[sinkCtx] = sinkTask.GenerateEmit
	}
}

func (e *Runtime) newEmitNext(ctx mixer.Context) mixer.EmitNext {
	selector := ctx.Properties().GetString(constant.SelectorProperty)
	newGenerator := emit.NewEmitNextGeneratorFunc(selector)
	if newGenerator == nil {
		panic(fmt.Sprintf("%s has unknown select %q.", ctx.Name(), selector))
	}
	return newGenerator()(ctx, e.allEmitNext, e.topology)
}

func (e *Runtime) initTopology() {
	for _, operatorTask := range e.operatorTasks {
		operatorTask.EmitNext = e.newEmitNext(operatorTask.Ctx)
	}
	for _, sourceTask := range e.sourceTasks {
		sourceTask.EmitNext = e.newEmitNext(sourceTask.Ctx)
	}
	for ctx := range e.operatorTasks {
		if len(e.topology[ctx]) == 0 {
			e.logger.Warnw("operator has no upstream.", "operator", ctx.Name())
		}
	}
}

//openAll opens downstream components first, so nothing receives events before it is ready.
//On failure the components opened so far are closed again.
func (e *Runtime) openAll() error {
	var opened []mixer.Component
	open := func(ctx mixer.Context, c mixer.Component, start func() error) error {
		if err := start(); err != nil {
			for i := len(opened) - 1; i >= 0; i-- {
				err = multierr.Append(err, opened[i].Close())
			}
			return errors.WithMessagef(err, "can't open %s", ctx.Name())
		}
		opened = append(opened, c)
		return nil
	}
	for ctx, sinkTask := range e.sinkTasks {
		if err := open(ctx, sinkTask, sinkTask.Start); err != nil {
			return err
		}
	}
	for ctx, operatorTask := range e.operatorTasks {
		if err := open(ctx, operatorTask, operatorTask.Start); err != nil {
			return err
		}
	}
	for ctx, sourceTask := range e.sourceTasks {
		if err := open(ctx, sourceTask, sourceTask.Start); err != nil {
			return err
		}
	}
	return nil
}

//initCheckpoints enables snapshots of stateful components in snapshot mode
func (e *Runtime) initCheckpoints() error {
	if e.runtime.GetString(constant.RuntimeModeProperty) != mixer.Snapshot {
		return nil
	}
	dir := e.runtime.GetString(constant.RuntimeStatusDirProperty)
	checkpoints, err := checkpoint.New(dir)
	if err != nil {
		return err
	}
	e.logger.Infow("snapshots enabled.", "dir", dir)
	e.checkpoints = checkpoints
	return nil
}

func (e *Runtime) serveMetrics() {
	addr := e.runtime.GetString(constant.RuntimeMetricsAddrProperty)
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	e.life.Go(func() error {
		e.logger.Infow("serving metrics.", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Errorw("metrics server stopped.", "err", err)
		}
		return nil
	})
	e.life.Go(func() error {
		<-e.ctx.Done()
		shutdownCtx, cancel := _c.WithTimeout(_c.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
}

//Run builds the topology, runs every task and blocks until all of them stop
func (e *Runtime) Run() error {
	//notify system signal
	e.life.Go(func() error {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
		defer signal.Stop(c)
		select {
		case s := <-c:
			e.logger.Infof("notify system signal %s, done.", s)
			e.ctx.Cancel()
		case <-e.ctx.Done():
			e.logger.Warn("context done.")
		}
		return nil
	})

	if err := e.initCheckpoints(); err != nil {
		e.ctx.Cancel()
		_ = e.life.Wait()
		return err
	}
	e.initSources()
	e.initOperators()
	e.initSinks()
	e.initTopology()
	if err := e.openAll(); err != nil {
		e.ctx.Cancel()
		_ = e.life.Wait()
		return err
	}
	e.serveMetrics()
	e.runAll()
	<-e.life.Dead()
	if err := e.life.Err(); err != nil && !errors.Is(err, _c.Canceled) {
		return err
	}
	return nil
}

func (e *Runtime) Cancel() {
	e.ctx.Cancel()
}

func (e *Runtime) runTask(kind, name string, run func() error) {
	e.life.Go(func() error {
		e.logger.Infow(fmt.Sprintf("starting run %s task.", kind), "task", name)
		err := run()
		if err != nil {
			e.logger.Errorw(fmt.Sprintf("failed run %s task.", kind), "task", name, "err", err)
			e.life.Kill(err)
		} else {
			e.logger.Infow(fmt.Sprintf("%s task is complete.", kind), "task", name)
		}
		e.ctx.Cancel()
		return err
	})
}

func (e *Runtime) runAll() {
	for ctx, sinkTask := range e.sinkTasks {
		e.runTask("sink", ctx.Name(), sinkTask.Run)
	}
	for ctx, operatorTask := range e.operatorTasks {
		e.runTask("operator", ctx.Name(), operatorTask.Run)
	}
	for _, sourceTask := range e.sourceTasks {
		e.runTask("source", sourceTask.Name, sourceTask.Run)
	}
}

//New reads the configuration file and sets up logging from its global section
func New(originCtx _c.Context, propertiesName string, propertiesType string, propertiesPath ...string) *Runtime {
	log.Setup(log.DefaultOptions().WithOutputEncoder(log.ConsoleOutputEncoder))
	return NewWithProperties(originCtx, properties.New(propertiesName, propertiesType, propertiesPath...))
}

func NewWithProperties(originCtx _c.Context, ps mixer.Properties) *Runtime {
	ctx := context.New(originCtx, ps)
	logger := log.Ctx(ctx)
	initAndRender, err := properties.InitAndRender(ps.Global(), propertiesDef)
	if err != nil {
		panic(errors.WithMessage(err, "can't init runtime properties"))
	}
	if err = log.SetLevel(ps.Global().GetString(constant.RuntimeLogLevelProperty)); err != nil {
		panic(err)
	}
	logger.Infof("global:\n%s", initAndRender)

	life, _ := tomb.WithContext(ctx.Ctx())
	return &Runtime{
		logger:        logger,
		sourceTasks:   map[mixer.Context]*task.SourceTask{},
		operatorTasks: map[mixer.Context]*task.OperatorTask{},
		sinkTasks:     map[mixer.Context]*task.SinkTask{},
		allEmitNext:   map[mixer.Context]mixer.EmitGenerator{},
		topology:      map[mixer.Context][]mixer.Context{},
		runtime:       ps.Global(),
		life:          life,
		ctx:           ctx,
	}
}
