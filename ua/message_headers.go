// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

// Header and SetHeader give every service request/response uniform access
// to its shared header, letting the SecureChannel stamp
// AuthenticationToken/Timestamp/RequestHandle and read ServiceResult without
// a type switch per service (spec.md §4.7).

func (r *ReadRequest) Header() *RequestHeader { return &r.RequestHeader }
func (r *ReadRequest) SetHeader(h *RequestHeader) { r.RequestHeader = *h }

func (r *WriteRequest) Header() *RequestHeader { return &r.RequestHeader }
func (r *WriteRequest) SetHeader(h *RequestHeader) { r.RequestHeader = *h }

func (r *CallRequest) Header() *RequestHeader { return &r.RequestHeader }
func (r *CallRequest) SetHeader(h *RequestHeader) { r.RequestHeader = *h }

func (r *CreateMonitoredItemsRequest) Header() *RequestHeader { return &r.RequestHeader }
func (r *CreateMonitoredItemsRequest) SetHeader(h *RequestHeader) { r.RequestHeader = *h }

func (r *ModifyMonitoredItemsRequest) Header() *RequestHeader { return &r.RequestHeader }
func (r *ModifyMonitoredItemsRequest) SetHeader(h *RequestHeader) { r.RequestHeader = *h }

func (r *SetMonitoringModeRequest) Header() *RequestHeader { return &r.RequestHeader }
func (r *SetMonitoringModeRequest) SetHeader(h *RequestHeader) { r.RequestHeader = *h }

func (r *DeleteMonitoredItemsRequest) Header() *RequestHeader { return &r.RequestHeader }
func (r *DeleteMonitoredItemsRequest) SetHeader(h *RequestHeader) { r.RequestHeader = *h }

func (r *PublishRequest) Header() *RequestHeader { return &r.RequestHeader }
func (r *PublishRequest) SetHeader(h *RequestHeader) { r.RequestHeader = *h }

func (r *RepublishRequest) Header() *RequestHeader { return &r.RequestHeader }
func (r *RepublishRequest) SetHeader(h *RequestHeader) { r.RequestHeader = *h }

func (r *OpenSecureChannelRequest) Header() *RequestHeader { return &r.RequestHeader }
func (r *OpenSecureChannelRequest) SetHeader(h *RequestHeader) { r.RequestHeader = *h }

func (r *CloseSecureChannelRequest) Header() *RequestHeader { return &r.RequestHeader }
func (r *CloseSecureChannelRequest) SetHeader(h *RequestHeader) { r.RequestHeader = *h }

func (r *GetEndpointsRequest) Header() *RequestHeader { return &r.RequestHeader }
func (r *GetEndpointsRequest) SetHeader(h *RequestHeader) { r.RequestHeader = *h }

func (r *CreateSessionRequest) Header() *RequestHeader { return &r.RequestHeader }
func (r *CreateSessionRequest) SetHeader(h *RequestHeader) { r.RequestHeader = *h }

func (r *ActivateSessionRequest) Header() *RequestHeader { return &r.RequestHeader }
func (r *ActivateSessionRequest) SetHeader(h *RequestHeader) { r.RequestHeader = *h }

func (r *CloseSessionRequest) Header() *RequestHeader { return &r.RequestHeader }
func (r *CloseSessionRequest) SetHeader(h *RequestHeader) { r.RequestHeader = *h }

func (r *CreateSubscriptionRequest) Header() *RequestHeader { return &r.RequestHeader }
func (r *CreateSubscriptionRequest) SetHeader(h *RequestHeader) { r.RequestHeader = *h }

func (r *ModifySubscriptionRequest) Header() *RequestHeader { return &r.RequestHeader }
func (r *ModifySubscriptionRequest) SetHeader(h *RequestHeader) { r.RequestHeader = *h }

func (r *SetPublishingModeRequest) Header() *RequestHeader { return &r.RequestHeader }
func (r *SetPublishingModeRequest) SetHeader(h *RequestHeader) { r.RequestHeader = *h }

func (r *DeleteSubscriptionsRequest) Header() *RequestHeader { return &r.RequestHeader }
func (r *DeleteSubscriptionsRequest) SetHeader(h *RequestHeader) { r.RequestHeader = *h }

func (r *BrowseRequest) Header() *RequestHeader { return &r.RequestHeader }
func (r *BrowseRequest) SetHeader(h *RequestHeader) { r.RequestHeader = *h }

func (r *BrowseNextRequest) Header() *RequestHeader { return &r.RequestHeader }
func (r *BrowseNextRequest) SetHeader(h *RequestHeader) { r.RequestHeader = *h }

func (r *TranslateBrowsePathsToNodeIdsRequest) Header() *RequestHeader { return &r.RequestHeader }
func (r *TranslateBrowsePathsToNodeIdsRequest) SetHeader(h *RequestHeader) { r.RequestHeader = *h }

func (r *ReadResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *WriteResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *CallResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *CreateMonitoredItemsResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *ModifyMonitoredItemsResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *SetMonitoringModeResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *DeleteMonitoredItemsResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *PublishResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *RepublishResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *OpenSecureChannelResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *CloseSecureChannelResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *GetEndpointsResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *ServiceFault) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *CreateSessionResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *ActivateSessionResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *CloseSessionResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *CreateSubscriptionResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *ModifySubscriptionResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *SetPublishingModeResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *DeleteSubscriptionsResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *BrowseResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *BrowseNextResponse) Header() *ResponseHeader { return &r.ResponseHeader }

func (r *TranslateBrowsePathsToNodeIdsResponse) Header() *ResponseHeader { return &r.ResponseHeader }

