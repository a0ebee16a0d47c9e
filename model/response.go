package model

// OrchestrationForm 编排结果的最小单元，服务接口已收窄为一个
type OrchestrationForm struct {
	Service           Service `json:"service"`
	Provider          System  `json:"provider"`
	ProviderCloud     *Cloud  `json:"providerCloud,omitempty"`
	ServiceURI        string  `json:"serviceURI"`
	AuthorizationInfo string  `json:"authorizationInfo,omitempty"`
}

// OrchestrationResponse 有序的编排结果
type OrchestrationResponse struct {
	Response []OrchestrationForm `json:"response"`
}

// NewResponse 构造结果，nil 切片规范化为空列表
func NewResponse(forms []OrchestrationForm) OrchestrationResponse {
	if forms == nil {
		forms = []OrchestrationForm{}
	}
	return OrchestrationResponse{Response: forms}
}

// Empty 是否没有任何表单
func (r OrchestrationResponse) Empty() bool {
	return len(r.Response) == 0
}

// GSDRequest 全局服务发现请求，只携带服务身份
type GSDRequest struct {
	RequestedService Service `json:"requestedService"`
	RequesterCloud   *Cloud  `json:"requesterCloud,omitempty"`
}

// GSDEntry 声明托管该服务的云
type GSDEntry struct {
	Cloud Cloud `json:"cloud"`
}

// GSDResult 有序的全局服务发现结果
type GSDResult struct {
	Response []GSDEntry `json:"response"`
}

// ICNRequest 跨云协商请求
type ICNRequest struct {
	RequestedService   Service           `json:"requestedService"`
	RequesterSystem    System            `json:"requesterSystem"`
	RequesterCloud     Cloud             `json:"requesterCloud"`
	TargetCloud        Cloud             `json:"targetCloud"`
	AuthenticationInfo string            `json:"authenticationInfo,omitempty"`
	PreferredProviders []System          `json:"preferredProviders,omitempty"`
	RequestedQoS       map[string]string `json:"requestedQoS,omitempty"`
	Commands           map[string]string `json:"commands,omitempty"`
}

// ICNResult 跨云协商结果，内嵌对端本地编排的结果
type ICNResult struct {
	Instructions OrchestrationResponse `json:"instructions"`
}
