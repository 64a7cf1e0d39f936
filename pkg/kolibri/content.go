package kolibri

import (
	"context"
	"fmt"
	"image"
	"net/url"
	"path"
	"strconv"

	"github.com/ilkoid/kolibri-sdk/pkg/utils"
)

// Имена операций - ключи samples в хранилище.
const (
	OpGetChannels    = "get_channels"
	OpGetChildren    = "get_children"
	OpGetNodeDetails = "get_node_details"
	OpFetchContent   = "fetch_content"
)

// Endpoints Kolibri content API.
const (
	channelsEndpoint    = "/api/content/channel"
	childrenEndpoint    = "/api/content/contentnode_slim"
	nodeDetailsEndpoint = "/api/content/contentnode/"
)

// DefaultUserKind - роль пользователя для GetChildren по умолчанию.
const DefaultUserKind = "superuser"

// GetChannels возвращает список каналов. available передаётся как query параметр
// (в Kolibri обычно true).
func (c *Client) GetChannels(ctx context.Context, available bool) (*Response, error) {
	return c.Execute(ctx, Operation{
		Name: OpGetChannels,
		Run: func(ctx context.Context) (*Response, error) {
			params := url.Values{}
			params.Set("available", strconv.FormatBool(available))
			return c.Get(ctx, channelsEndpoint, RequestOptions{Params: params})
		},
	})
}

// GetChildren возвращает дочерние узлы parent. Пустой userKind - DefaultUserKind.
func (c *Client) GetChildren(ctx context.Context, parent, userKind string) (*Response, error) {
	if userKind == "" {
		userKind = DefaultUserKind
	}
	return c.Execute(ctx, Operation{
		Name: OpGetChildren,
		Run: func(ctx context.Context) (*Response, error) {
			params := url.Values{}
			params.Set("parent", parent)
			params.Set("user_kind", userKind)
			return c.Get(ctx, childrenEndpoint, RequestOptions{Params: params})
		},
	})
}

// GetNodeDetails возвращает узел по идентификатору.
func (c *Client) GetNodeDetails(ctx context.Context, node string) (*Response, error) {
	return c.Execute(ctx, Operation{
		Name: OpGetNodeDetails,
		Run: func(ctx context.Context) (*Response, error) {
			return c.Get(ctx, nodeDetailsEndpoint+url.PathEscape(node), RequestOptions{})
		},
	})
}

// FetchContent скачивает контент по storage URL (относительному или абсолютному).
//
// Если saveAt не пустой, тело ответа пишется в этот файл. Ответ возвращается
// в любом случае. В test mode операция целиком подменяется sample и файл
// не пишется.
func (c *Client) FetchContent(ctx context.Context, storageURL, saveAt string) (*Response, error) {
	return c.Execute(ctx, Operation{
		Name: OpFetchContent,
		Run: func(ctx context.Context) (*Response, error) {
			resp, err := c.Get(ctx, storageURL, RequestOptions{})
			if err != nil {
				return nil, err
			}
			if saveAt == "" {
				return resp, nil
			}
			if err := writeFile(saveAt, resp.Body); err != nil {
				return nil, fmt.Errorf("save content: %w", err)
			}
			utils.Info("content saved", "url", storageURL, "path", saveAt, "bytes", len(resp.Body))
			return resp, nil
		},
	})
}

// FetchContentTo скачивает контент и сохраняет его в sink под именем name.
// Пустой name - последний сегмент пути storageURL.
func (c *Client) FetchContentTo(ctx context.Context, storageURL string, sink ContentSink, name string) (*Response, error) {
	if name == "" {
		name = contentName(storageURL)
	}
	return c.Execute(ctx, Operation{
		Name: OpFetchContent,
		Run: func(ctx context.Context) (*Response, error) {
			resp, err := c.Get(ctx, storageURL, RequestOptions{})
			if err != nil {
				return nil, err
			}
			if !resp.OK() {
				return resp, nil
			}
			if err := sink.Save(ctx, name, resp.Body); err != nil {
				return nil, fmt.Errorf("save content %s: %w", name, err)
			}
			utils.Info("content stored", "url", storageURL, "name", name, "bytes", len(resp.Body))
			return resp, nil
		},
	})
}

// FetchThumbnail скачивает изображение и ужимает его до maxWidth (JPEG).
func (c *Client) FetchThumbnail(ctx context.Context, storageURL string, maxWidth, quality int) ([]byte, image.Point, error) {
	resp, err := c.FetchContent(ctx, storageURL, "")
	if err != nil {
		return nil, image.Point{}, err
	}
	if !resp.OK() {
		return nil, image.Point{}, fmt.Errorf("fetch %s: status %d", storageURL, resp.StatusCode)
	}

	data, size, err := utils.Thumbnail(resp.Body, maxWidth, quality)
	if err != nil {
		return nil, image.Point{}, fmt.Errorf("thumbnail %s: %w", storageURL, err)
	}
	return data, size, nil
}

// ListChannels - GetChannels с разбором ответа.
func (c *Client) ListChannels(ctx context.Context, available bool) ([]Channel, error) {
	resp, err := c.GetChannels(ctx, available)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("get channels: status %d", resp.StatusCode)
	}
	return DecodeChannels(resp)
}

// ListChildren - GetChildren с разбором ответа.
func (c *Client) ListChildren(ctx context.Context, parent, userKind string) ([]ContentNode, error) {
	resp, err := c.GetChildren(ctx, parent, userKind)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("get children of %s: status %d", parent, resp.StatusCode)
	}
	return DecodeNodes(resp)
}

// NodeDetails - GetNodeDetails с разбором ответа.
func (c *Client) NodeDetails(ctx context.Context, node string) (*ContentNode, error) {
	resp, err := c.GetNodeDetails(ctx, node)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("get node %s: status %d", node, resp.StatusCode)
	}
	return DecodeNode(resp)
}

func contentName(storageURL string) string {
	if u, err := url.Parse(storageURL); err == nil && u.Path != "" {
		if base := path.Base(u.Path); base != "/" && base != "." {
			return base
		}
	}
	return "content.bin"
}
