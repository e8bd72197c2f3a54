package main

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/HenriMatthijssen/ePaper/pkg/httpx"
)

// Client talks to the device's HTTP control plane.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func newClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// decodeReply turns a control-plane reply into a message or an error.
func decodeReply(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	var reply httpx.Reply
	if err := json.Unmarshal(body, &reply); err != nil {
		return "", fmt.Errorf("unexpected response (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if reply.Status != httpx.StatusSuccess {
		return "", fmt.Errorf("device rejected request: %s", reply.Message)
	}
	return reply.Message, nil
}

func (c *Client) postForm(path string, form url.Values) (string, error) {
	resp, err := c.httpClient.PostForm(c.baseURL+path, form)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	return decodeReply(resp)
}

// Action runs one control action.
func (c *Client) Action(action, value string) (string, error) {
	return c.postForm("/api", url.Values{
		"action": {action},
		"value":  {value},
		"api":    {c.apiKey},
	})
}

// SetupWifi submits station credentials to a device in setup mode.
func (c *Client) SetupWifi(ssid, password string) (string, error) {
	return c.postForm("/wifi", url.Values{"ssid": {ssid}, "password": {password}})
}

// Flash streams a firmware image as a multipart upload. The device restarts
// after answering, whatever the outcome.
func (c *Client) Flash(name string, size int64, image io.Reader) (string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("firmware", filepath.Base(name))
		if err == nil {
			_, err = io.Copy(part, image)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	u := c.baseURL + "/upgradefw2?size=" + strconv.FormatInt(size, 10)
	req, err := http.NewRequest(http.MethodPost, u, pr)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	// uploads can outlast the default timeout
	client := *c.httpClient
	client.Timeout = 0
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	return decodeReply(resp)
}
