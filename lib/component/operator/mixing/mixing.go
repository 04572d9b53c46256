package mixing

import (
	"mixer/lib/component"
	"mixer/lib/emit"
	"mixer/lib/log"
	"mixer/lib/mixing"
	"mixer/lib/mixing/store/memory"
	"mixer/lib/mixing/store/pebble"
	"mixer/lib/mixing/store/redis"
	"mixer/mixer"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	_redis "github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
)

var ErrUnknownStore = errors.New("unknown store type")

//operator groups events sharing a key into windows and emits one event per window
type operator struct {
	ctx    mixer.Context
	logger mixer.Logger
	acker  mixer.ACKer
	next   *emit.Deferred
	keyer  Keyer
	queue  *mixing.Queue
	cron   *cron.Cron

	handler func(packet mixing.Packet) error
}

func (o *operator) Open(ctx mixer.Context) error {
	o.ctx = ctx
	o.logger = log.Ctx(o.ctx)
	o.acker = mixer.NewACKer()
	o.next = emit.NewDeferred()
	properties := o.ctx.Properties()

	keyer, err := NewKeyer(properties.GetString(KeyScriptProperty), properties.GetString(KeyProperty), properties.GetString(OriginProperty))
	if err != nil {
		return err
	}
	o.keyer = keyer

	buffer, err := newBuffer(properties)
	if err != nil {
		return err
	}
	o.queue = mixing.New(buffer,
		mixing.WithName(o.ctx.Name()),
		mixing.WithLogger(log.Ctx(o.ctx)),
		mixing.WithMixingDelay(time.Duration(properties.GetInt(MixingDelayProperty))*time.Millisecond),
		mixing.WithSignatureSpecificDelay(properties.GetBool(SignatureSpecificDelayProperty)),
		mixing.WithAllowDuplicates(properties.GetBool(AllowDuplicatesProperty)),
	)
	o.queue.Subscribe(o.publish)
	o.queue.Bind(o.ctx.Ctx(), o)

	o.cron = cron.New(cron.WithSeconds())
	if _, err = o.cron.AddFunc(properties.GetString(ReportProperty), o.report); err != nil {
		return multierr.Append(errors.WithMessage(err, "can't add report function to cron"), o.queue.Close())
	}
	return nil
}

func newBuffer(properties mixer.Properties) (mixing.Buffer, error) {
	switch storeType := properties.GetString(StoreTypeProperty); storeType {
	case "memory":
		return memory.New(), nil
	case "pebble":
		store, err := pebble.Open(pebble.Options{Path: properties.GetString(PebblePathProperty)})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "redis":
		return redis.New(&_redis.UniversalOptions{
			Addrs: properties.GetStringSlice(RedisAddrsProperty),
		}, properties.GetString(RedisPrefixProperty)), nil
	default:
		return nil, errors.WithMessage(ErrUnknownStore, storeType)
	}
}

//Subscribe makes the operator the packet source of its queue
func (o *operator) Subscribe(handler func(packet mixing.Packet) error) {
	o.handler = handler
}

func (o *operator) emit(event *mixer.Event) {
	key, origin, err := o.keyer.Keys(o.ctx.Ctx(), event)
	if err != nil {
		o.logger.Errorw("can't extract key, discarding event.", "event", event, "err", err)
		o.acker.OnACK(event, false)
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		o.logger.Errorw("can't encode event, discarding event.", "event", event, "err", err)
		o.acker.OnACK(event, false)
		return
	}
	if err = o.handler(mixing.Packet{Key: key, Origin: origin, Body: body}); err != nil {
		o.logger.Errorw("can't mix event, discarding event.", "key", key, "origin", origin, "err", err)
		o.acker.OnACK(event, false)
		return
	}
	o.acker.OnACK(event, true)
}

//publish runs with the queue locked, it must not call back into the queue.
//Message lists the original messages, meta "members" keeps each one's origin,
//meta and time in the same order.
func (o *operator) publish(batch mixing.Batch) {
	messages := make([]any, 0, len(batch.Packets))
	members := make([]map[string]any, 0, len(batch.Packets))
	for _, packet := range batch.Packets {
		var event mixer.Event
		if err := json.Unmarshal(packet.Body, &event); err != nil {
			o.logger.Errorw("can't decode packet, dropping it.", "key", batch.Key, "err", err)
			continue
		}
		messages = append(messages, event.Message)
		members = append(members, map[string]any{
			"origin": packet.Origin,
			"meta":   event.Meta,
			"time":   event.Time,
		})
	}
	o.next.Emit(o.ctx.Done(), &mixer.Event{
		Meta: map[string]any{
			"key":     batch.Key,
			"size":    len(messages),
			"pushout": batch.Pushout,
			"members": members,
		},
		Message: messages,
		Time:    time.Now(),
	}, nil)
}

func (o *operator) report() {
	o.logger.Infow("mixing report.", "pending", o.queue.Pending())
}

func (o *operator) GenerateEmit(_ mixer.Context) mixer.Emit {
	return o.emit
}

func (o *operator) Collect(emitNext mixer.EmitNext) error {
	o.next.Set(emitNext)
	o.cron.Start()
	<-o.ctx.Done()
	return nil
}

func (o *operator) Close() error {
	<-o.cron.Stop().Done()
	o.acker.Close()
	return o.queue.Close()
}

func (o *operator) PropertiesDef() mixer.PropertiesDef {
	return mixer.PropertiesDef{
		MixingDelayProperty,
		SignatureSpecificDelayProperty,
		AllowDuplicatesProperty,
		KeyProperty,
		OriginProperty,
		KeyScriptProperty,
		StoreTypeProperty,
		PebblePathProperty,
		RedisAddrsProperty,
		RedisPrefixProperty,
		ReportProperty,
	}
}

func New() mixer.Operator {
	return &operator{}
}

func init() {
	component.RegisterNewOperatorFunc("mixing", New)
}
