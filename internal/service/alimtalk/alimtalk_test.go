package alimtalk_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"notico/internal/common"
	"notico/internal/domain/dispatch"
	alimtalkinfra "notico/internal/infra/alimtalk"
	"notico/internal/render"
	"notico/internal/service/alimtalk"
	"notico/internal/testsupport"
)

// fakeClient serves a fixed template catalog and echoes send requests.
type fakeClient struct {
	ready     bool
	templates []alimtalkinfra.Template
	rejectNo  string // recipient number to reject

	lastSend *alimtalkinfra.MessageSendRequest
	lastRaw  *alimtalkinfra.RawMessageSendRequest
}

func (f *fakeClient) Initialized() bool { return f.ready }

func (f *fakeClient) SenderKey() string { return "sender-key" }

func (f *fakeClient) ListTemplates(ctx context.Context, templateCode string) (*alimtalkinfra.TemplateListResponse, error) {
	resp := &alimtalkinfra.TemplateListResponse{}
	for _, tpl := range f.templates {
		// the real endpoint matches by code prefix
		if strings.HasPrefix(tpl.TemplateCode, templateCode) {
			resp.TemplateListResponse.Templates = append(resp.TemplateListResponse.Templates, tpl)
		}
	}
	resp.TemplateListResponse.TotalCount = len(resp.TemplateListResponse.Templates)
	return resp, nil
}

func (f *fakeClient) results(recipients []string) []alimtalkinfra.SendResultItem {
	items := make([]alimtalkinfra.SendResultItem, 0, len(recipients))
	for i, no := range recipients {
		item := alimtalkinfra.SendResultItem{
			RecipientSeq: i + 1,
			RecipientNo:  no,
			ResultCode:   alimtalkinfra.SuccessResultCode,
		}
		if no == f.rejectNo {
			item.ResultCode = 3001
			item.ResultMessage = "invalid recipient"
		}
		items = append(items, item)
	}
	return items
}

func (f *fakeClient) SendMessages(ctx context.Context, req *alimtalkinfra.MessageSendRequest) (*alimtalkinfra.MessageSendResponse, error) {
	f.lastSend = req
	resp := &alimtalkinfra.MessageSendResponse{}
	resp.Message.RequestID = "req-1"
	var recipients []string
	for _, r := range req.RecipientList {
		recipients = append(recipients, r.RecipientNo)
	}
	resp.Message.SendResults = f.results(recipients)
	return resp, nil
}

func (f *fakeClient) SendRawMessages(ctx context.Context, req *alimtalkinfra.RawMessageSendRequest) (*alimtalkinfra.MessageSendResponse, error) {
	f.lastRaw = req
	resp := &alimtalkinfra.MessageSendResponse{}
	resp.Message.RequestID = "req-raw"
	var recipients []string
	for _, r := range req.RecipientList {
		recipients = append(recipients, r.RecipientNo)
	}
	resp.Message.SendResults = f.results(recipients)
	return resp, nil
}

func catalogClient() *fakeClient {
	return &fakeClient{
		ready: true,
		templates: []alimtalkinfra.Template{
			{TemplateCode: "ORDER1", TemplateName: "order", TemplateContent: "주문 #{order_id} 접수", Status: "APR"},
			{TemplateCode: "ORDER10", TemplateName: "order10", TemplateContent: "x", Status: "APR"},
		},
	}
}

func TestTemplateManager(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("lists provider catalog", func(t *testing.T) {
		t.Parallel()

		tm := alimtalk.NewTemplateManager(catalogClient())
		infos, err := tm.List(ctx)
		require.NoError(t, err)
		require.Len(t, infos, 2)
		require.Equal(t, []string{"order_id"}, infos[0].Variables)
	})

	t.Run("retrieve matches code exactly", func(t *testing.T) {
		t.Parallel()

		tm := alimtalk.NewTemplateManager(catalogClient())
		info, err := tm.Retrieve(ctx, "ORDER1")
		require.NoError(t, err)
		require.NotNil(t, info)
		require.Equal(t, "ORDER1", info.Code)

		info, err = tm.Retrieve(ctx, "ORDER")
		require.NoError(t, err)
		require.Nil(t, info)
	})

	t.Run("uses provider delimiters", func(t *testing.T) {
		t.Parallel()

		tm := alimtalk.NewTemplateManager(catalogClient())
		start, end := tm.Delimiters()
		require.Equal(t, "#{", start)
		require.Equal(t, "}", end)
	})

	t.Run("render previews substitution", func(t *testing.T) {
		t.Parallel()

		tm := alimtalk.NewTemplateManager(catalogClient())
		rendered, err := tm.Render(ctx, "ORDER1", dispatch.Context{"order_id": "A-1"}, render.PolicyRemove)
		require.NoError(t, err)
		require.Equal(t, "주문 A-1 접수", rendered)
	})

	t.Run("mutations are unsupported", func(t *testing.T) {
		t.Parallel()

		tm := alimtalk.NewTemplateManager(catalogClient())
		var unsupported *common.UnsupportedOperationError

		_, err := tm.Create(ctx, "X", "body")
		require.ErrorAs(t, err, &unsupported)
		_, err = tm.Update(ctx, "X", "body")
		require.ErrorAs(t, err, &unsupported)
		err = tm.Delete(ctx, "X")
		require.ErrorAs(t, err, &unsupported)
		_, err = tm.RenderHTML(ctx, "ORDER1", nil, render.PolicyRemove)
		require.ErrorAs(t, err, &unsupported)
	})
}

func TestManagerSend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("single batch call with per recipient parameters", func(t *testing.T) {
		t.Parallel()

		client := catalogClient()
		m := alimtalk.NewManager(alimtalk.NewTemplateManager(client), client, testsupport.Logger())
		require.True(t, m.CanSendRaw())

		result, err := m.Send(ctx, &dispatch.SendRequest{
			TemplateCode:  "ORDER1",
			SharedContext: dispatch.Context{"store": "acme"},
			PersonalizedContext: map[string]dispatch.Context{
				"01011112222": {"order_id": "A-1"},
				"01033334444": {"order_id": "A-2", "count": 3},
			},
		})
		require.NoError(t, err)
		require.Len(t, result, 2)
		require.Equal(t, dispatch.Sent("req-1"), result["01011112222"])

		require.NotNil(t, client.lastSend)
		require.Equal(t, "sender-key", client.lastSend.SenderKey)
		require.Equal(t, "ORDER1", client.lastSend.TemplateCode)
		require.Len(t, client.lastSend.RecipientList, 2)

		for _, r := range client.lastSend.RecipientList {
			require.Equal(t, "acme", r.TemplateParameter["store"])
			if r.RecipientNo == "01033334444" {
				require.Equal(t, "A-2", r.TemplateParameter["order_id"])
				require.Equal(t, "3", r.TemplateParameter["count"])
			}
		}
	})

	t.Run("per recipient rejection maps to failed outcome", func(t *testing.T) {
		t.Parallel()

		client := catalogClient()
		client.rejectNo = "01099998888"
		m := alimtalk.NewManager(alimtalk.NewTemplateManager(client), client, testsupport.Logger())

		result, err := m.Send(ctx, &dispatch.SendRequest{
			TemplateCode: "ORDER1",
			PersonalizedContext: map[string]dispatch.Context{
				"01011112222": {},
				"01099998888": {},
			},
		})
		require.NoError(t, err)
		require.Equal(t, dispatch.OutcomeSent, result["01011112222"].Status)
		require.Equal(t, dispatch.OutcomeFailed, result["01099998888"].Status)
		require.Contains(t, result["01099998888"].Error, "3001")
	})

	t.Run("unconfigured client fails fast", func(t *testing.T) {
		t.Parallel()

		client := &fakeClient{ready: false}
		m := alimtalk.NewManager(alimtalk.NewTemplateManager(client), client, testsupport.Logger())

		_, err := m.Send(ctx, &dispatch.SendRequest{
			TemplateCode:        "ORDER1",
			PersonalizedContext: map[string]dispatch.Context{"01011112222": {}},
		})
		var cfgErr *common.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
	})
}

func TestManagerSendRaw(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("delivers pre-rendered content", func(t *testing.T) {
		t.Parallel()

		client := catalogClient()
		m := alimtalk.NewManager(alimtalk.NewTemplateManager(client), client, testsupport.Logger())

		result, err := m.SendRaw(ctx, &dispatch.RawSendRequest{
			TemplateCode: "ORDER1",
			PersonalizedContent: map[string]dispatch.Context{
				"01011112222": {"content": "주문 A-1 접수"},
			},
		})
		require.NoError(t, err)
		require.Equal(t, dispatch.Sent("req-raw"), result["01011112222"])

		require.NotNil(t, client.lastRaw)
		require.Equal(t, "주문 A-1 접수", client.lastRaw.RecipientList[0].Content)
	})

	t.Run("missing content fails that recipient only", func(t *testing.T) {
		t.Parallel()

		client := catalogClient()
		m := alimtalk.NewManager(alimtalk.NewTemplateManager(client), client, testsupport.Logger())

		result, err := m.SendRaw(ctx, &dispatch.RawSendRequest{
			TemplateCode: "ORDER1",
			PersonalizedContent: map[string]dispatch.Context{
				"01011112222": {"content": "ok"},
				"01033334444": {"note": "no content key"},
			},
		})
		require.NoError(t, err)
		require.Equal(t, dispatch.OutcomeSent, result["01011112222"].Status)
		require.Equal(t, dispatch.OutcomeFailed, result["01033334444"].Status)
	})
}
