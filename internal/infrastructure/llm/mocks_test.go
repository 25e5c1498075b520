package llm

import (
	"context"
	"errors"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type fakeChatModel struct {
	calls   int
	optLens []int
	inputs  [][]*schema.Message
	replies []fakeReply
}

type fakeReply struct {
	msg *schema.Message
	err error
}

func (m *fakeChatModel) Generate(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.inputs = append(m.inputs, input)
	m.optLens = append(m.optLens, len(opts))
	if m.calls >= len(m.replies) {
		return nil, errors.New("unexpected call")
	}
	r := m.replies[m.calls]
	m.calls++
	return r.msg, r.err
}

func (m *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

type fakeFactory struct {
	models map[string]model.BaseChatModel
}

func (f *fakeFactory) Get(_ context.Context, name string) (model.BaseChatModel, error) {
	m, ok := f.models[name]
	if !ok {
		return nil, errors.New("unknown provider " + name)
	}
	return m, nil
}
