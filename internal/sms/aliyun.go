package sms

import (
	"errors"
	"fmt"
	"strings"

	openapi "github.com/alibabacloud-go/darabonba-openapi/v2/client"
	dypnsapi "github.com/alibabacloud-go/dypnsapi-20170525/v3/client"
	util "github.com/alibabacloud-go/tea-utils/v2/service"
	"github.com/alibabacloud-go/tea/tea"
)

const defaultEndpoint = "dypnsapi.aliyuncs.com"

// AliyunConfig holds credentials and template settings for the Alibaba Cloud
// SMS verification-code API.
type AliyunConfig struct {
	AccessKeyID     string
	AccessKeySecret string
	Endpoint        string
	SignName        string
	TemplateCode    string
	TimeoutMillis   int
}

// AliyunSender sends codes through the Alibaba Cloud Dypnsapi service.
type AliyunSender struct {
	client        *dypnsapi.Client
	signName      string
	templateCode  string
	timeoutMillis int
}

// NewAliyunSender builds the API client from static credentials.
func NewAliyunSender(cfg AliyunConfig) (*AliyunSender, error) {
	if strings.TrimSpace(cfg.AccessKeyID) == "" || strings.TrimSpace(cfg.AccessKeySecret) == "" {
		return nil, errors.New("sms access key id and secret are required")
	}
	if strings.TrimSpace(cfg.SignName) == "" || strings.TrimSpace(cfg.TemplateCode) == "" {
		return nil, errors.New("sms sign name and template code are required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	timeout := cfg.TimeoutMillis
	if timeout <= 0 {
		timeout = 5000
	}
	client, err := dypnsapi.NewClient(&openapi.Config{
		AccessKeyId:     tea.String(cfg.AccessKeyID),
		AccessKeySecret: tea.String(cfg.AccessKeySecret),
		Endpoint:        tea.String(endpoint),
	})
	if err != nil {
		return nil, fmt.Errorf("init sms client: %w", err)
	}
	return &AliyunSender{
		client:        client,
		signName:      cfg.SignName,
		templateCode:  cfg.TemplateCode,
		timeoutMillis: timeout,
	}, nil
}

// Send dispatches the code to the phone number.
func (s *AliyunSender) Send(phone, code string) error {
	request := &dypnsapi.SendSmsVerifyCodeRequest{
		PhoneNumber:   tea.String(phone),
		SignName:      tea.String(s.signName),
		TemplateCode:  tea.String(s.templateCode),
		TemplateParam: tea.String(fmt.Sprintf(`{"code":"%s"}`, code)),
	}
	runtime := &util.RuntimeOptions{
		ConnectTimeout: tea.Int(s.timeoutMillis),
		ReadTimeout:    tea.Int(s.timeoutMillis),
	}
	resp, err := s.client.SendSmsVerifyCodeWithOptions(request, runtime)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	if resp == nil || resp.Body == nil {
		return errors.New("send sms: empty response")
	}
	if !tea.BoolValue(resp.Body.Success) {
		return fmt.Errorf("send sms: %s (%s)",
			tea.StringValue(resp.Body.Message), tea.StringValue(resp.Body.Code))
	}
	return nil
}
