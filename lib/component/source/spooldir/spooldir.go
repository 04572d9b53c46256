package spooldir

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"io/fs"
	"mixer/lib/component"
	"mixer/lib/log"
	"mixer/lib/properties"
	"mixer/mixer"
	"mixer/pkg/codec"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hpcloud/tail"
	"github.com/panjf2000/ants/v2"
	"github.com/spf13/cast"
)

var (
	ScanProperty       = properties.NewRequiredProperty[string]("scan", "watch this directory for new packet files")
	BackupProperty     = properties.NewProperty[string]("backup", "if backup is empty, remove file after combine", "")
	PatternProperty    = properties.NewProperty[string]("pattern", "regex pattern", ".*")
	ConcurrentProperty = properties.NewProperty[int]("concurrent", "combine number", 1)
	CodecProperty      = properties.NewProperty[string]("codec", "line codec, json or raw", codec.JSON)
)

type source struct {
	ctx         mixer.Context
	logger      mixer.Logger
	scanDir     string
	backupDir   string
	pattern     *regexp.Regexp
	decode      codec.Decoder
	combinePool *ants.PoolWithFunc
	combining   sync.WaitGroup

	emitNext mixer.EmitNext
	//state is the read offset of files left unfinished
	state sync.Map
	mutex sync.Mutex
}

func (s *source) Snapshot() ([]byte, error) {
	var buffer bytes.Buffer
	s.mutex.Lock()
	defer s.mutex.Unlock()
	snapshotMap := map[Identify]int64{}
	s.state.Range(func(key, value any) bool {
		snapshotMap[key.(Identify)] = value.(int64)
		return true
	})
	if err := gob.NewEncoder(&buffer).Encode(&snapshotMap); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func (s *source) Restore(snapshot []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	snapshotMap := map[Identify]int64{}
	if err := gob.NewDecoder(bytes.NewReader(snapshot)).Decode(&snapshotMap); err != nil {
		return err
	}
	for key, value := range snapshotMap {
		s.state.Store(key, value)
	}
	return nil
}

func (s *source) Open(ctx mixer.Context) (err error) {
	s.ctx = ctx
	s.logger = log.Ctx(s.ctx)
	s.scanDir = ctx.Properties().GetString(ScanProperty)
	s.backupDir = ctx.Properties().GetString(BackupProperty)

	if s.pattern, err = regexp.Compile(ctx.Properties().GetString(PatternProperty)); err != nil {
		return err
	}
	if s.decode, err = codec.NewDecoder(ctx.Properties().GetString(CodecProperty)); err != nil {
		return err
	}

	s.combinePool, err = ants.NewPoolWithFunc(ctx.Properties().GetInt(ConcurrentProperty),
		func(arg interface{}) {
			defer s.combining.Done()
			s.combine(cast.ToString(arg))
		},
		ants.WithLogger(&log.TailLoggerWrapper{Logger: s.logger}),
		ants.WithPanicHandler(func(reason interface{}) {
			if reason != nil {
				s.logger.Errorw("combine panic.", "reason", reason)
			}
		}))
	return err
}

func (s *source) Close() error {
	s.combining.Wait()
	s.combinePool.Release()
	return nil
}

func (s *source) PropertiesDef() mixer.PropertiesDef {
	return mixer.PropertiesDef{ScanProperty, BackupProperty, PatternProperty, ConcurrentProperty, CodecProperty}
}

func (s *source) Collect(emitNext mixer.EmitNext) error {
	s.emitNext = emitNext
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err = watcher.Add(s.scanDir); err != nil {
		return err
	}
	if err = s.recoveryCombine(); err != nil {
		return err
	}
	for {
		select {
		case <-s.ctx.Done():
			return nil
		case e := <-watcher.Events:
			if e.Op&fsnotify.Create == fsnotify.Create && s.pattern.MatchString(filepath.Base(e.Name)) {
				s.logger.Infof("scan to new files:%s.", e.Name)
				s.submitCombine(e.Name)
			}
		case err = <-watcher.Errors:
			s.logger.Warnw("watch file system failed.", "err", err)
		}
	}
}

func (s *source) submitCombine(filePath string) {
	s.combining.Add(1)
	if err := s.combinePool.Invoke(filePath); err != nil {
		s.combining.Done()
		s.logger.Errorw(fmt.Sprintf("submit %s combine task error, skip file.", filePath), "err", err)
	}
}

//recoveryCombine submits the files already waiting in the scan directory
func (s *source) recoveryCombine() error {
	var paths []string
	err := filepath.Walk(s.scanDir, func(filePath string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if filePath != s.scanDir {
				return filepath.SkipDir
			}
			return nil
		}
		if s.pattern.MatchString(info.Name()) {
			paths = append(paths, filePath)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, filePath := range paths {
		s.submitCombine(filePath)
	}
	return nil
}

func (s *source) combine(filePath string) {
	fileId, err := convertPathToIdentify(filePath)
	if err != nil {
		s.logger.Errorw("can't convert to identify, skip file.", "path", filePath, "err", err)
		return
	}
	var offset int64
	if offsetI, ok := s.state.Load(fileId); ok {
		offset = offsetI.(int64)
		s.logger.Infow("resume file.", "path", filePath, "offset", offset)
	}
	tailFile, err := tail.TailFile(filePath, tail.Config{
		Location: &tail.SeekInfo{
			Offset: offset,
			Whence: io.SeekStart,
		},
		Logger: &log.TailLoggerWrapper{Logger: s.logger}})
	if err != nil {
		s.logger.Errorw("tail error, skip this file.", "path", filePath, "err", err)
		return
	}
	defer tailFile.Cleanup()
	for {
		select {
		case line, ok := <-tailFile.Lines:
			if !ok {
				s.logger.Debugf("combine %s done, start afterCombine.", filePath)
				s.afterCombine(filePath, fileId)
				return
			}
			offset += int64(len(line.Text)) + 1
			s.emitLine(filePath, line)
		case <-s.ctx.Done():
			s.logger.Infow("ctx done, stopping tail and save position to state.", "path", filePath, "offset", offset)
			s.state.Store(fileId, offset)
			go func() {
				for range tailFile.Lines {
				}
			}()
			if err = tailFile.Stop(); err != nil {
				s.logger.Warnw("stop tail failed.", "path", filePath, "err", err)
			}
			return
		}
	}
}

func (s *source) emitLine(filePath string, line *tail.Line) {
	if line.Err != nil {
		s.logger.Warnw("read line failed, skip line.", "path", filePath, "err", line.Err)
		return
	}
	if line.Text == "" {
		return
	}
	message, err := s.decode([]byte(line.Text))
	if err != nil {
		s.logger.Warnw("can't decode line, skip line.", "path", filePath, "err", err)
		return
	}
	s.emitNext(
		&mixer.Event{
			Meta:    map[string]interface{}{"file": filePath, "time": line.Time},
			Message: message,
			Time:    time.Now(),
		}, nil)
}

func (s *source) afterCombine(filePath string, fileId Identify) {
	if s.backupDir == "" {
		//remove file
		if err := os.Remove(filePath); err != nil {
			s.logger.Errorw("can't remove.", "path", filePath, "err", err)
			return
		}
	} else {
		//backup file
		backupPath := path.Join(s.backupDir, path.Base(filePath)+time.Now().Format(".20060102150405"))
		if err := os.Rename(filePath, backupPath); err != nil {
			s.logger.Errorw("can't rename", "path", filePath, "err", err)
			return
		}
	}
	s.state.Delete(fileId)
	s.logger.Debugf("after combine %s.", filePath)
}

func New() mixer.Source {
	return &source{}
}

func init() {
	component.RegisterNewSourceFunc("spooldir", New)
}

var _ mixer.Stateful = (*source)(nil)